// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

/*
Package supervisor runs Pathfinder's long-lived services under a suture v4
supervisor tree.

The tree has two layers:

	pathfinder
	├── model-layer
	│   └── TrainingService (if TRAINING_ENABLED)
	└── ops-layer
	    └── HTTPServerService (if OPS_ENABLED)

Each layer counts failures independently, so a crashing retraining loop
enters backoff while /healthz and /metrics keep answering.

Supervisor events (service start, failure, restart, backoff) are logged
through sutureslog to the slog adapter in the logging package, which
forwards them to zerolog:

	slogger := logging.NewSlogLogger()
	tree, err := supervisor.NewTree(slogger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddModelService(services.NewTrainingService(coord, trainingCfg, logger))
	tree.AddOpsService(services.NewHTTPServerService(server, 10*time.Second))
	return tree.Serve(ctx)

Services live in the services subpackage.
*/
package supervisor
