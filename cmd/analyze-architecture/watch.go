// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/archtrace/services/arch"
	"github.com/AleutianAI/archtrace/services/arch/baseline"
	"github.com/AleutianAI/archtrace/services/arch/discovery"
)

// runWatch runs one analysis immediately, then re-runs on every debounced
// change batch until the context is canceled. Watch mode always exits 0 on
// interrupt; findings are reported in the output, not the exit code.
func runWatch(ctx context.Context, analyzer *arch.Analyzer, flags *cliFlags, opts arch.RunOptions, base *baseline.Baseline) error {
	runOnce := func() {
		res, err := analyzer.Run(ctx, opts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("analysis failed", "error", err)
			return
		}
		res.ApplyBaseline(base)
		if err := emitResult(res, flags); err != nil {
			slog.Error("writing report", "error", err)
		}
	}

	runOnce()

	watcher := discovery.NewWatcher(analyzer.Walker())
	return watcher.Run(ctx, func(changed []string) {
		for _, rel := range changed {
			analyzer.Loader().Invalidate(rel)
		}
		slog.Info("change detected", "files", len(changed))
		runOnce()
	})
}
