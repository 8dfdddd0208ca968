package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/harrisonrobin/taskbridge/pkg/config"
	"github.com/harrisonrobin/taskbridge/pkg/filestore"
	"github.com/harrisonrobin/taskbridge/pkg/google"
	"github.com/harrisonrobin/taskbridge/pkg/index"
	"github.com/harrisonrobin/taskbridge/pkg/logger"
	"github.com/harrisonrobin/taskbridge/pkg/source"
	"github.com/harrisonrobin/taskbridge/pkg/taskwarrior"
)

const linkIndexFile = "links.json"

// buildSource turns one side of the configuration into a Source. The returned
// close function flushes whatever state the source keeps between runs.
func buildSource(ctx context.Context, sc config.SourceConfig, role source.Role, dir string, log logger.Logger) (source.Source, func(), error) {
	noop := func() {}
	switch sc.Kind {
	case config.KindTaskwarrior:
		src := taskwarrior.NewSource(taskwarrior.NewClient(), role, strings.Fields(sc.Filter))
		return src, noop, nil

	case config.KindFile:
		return filestore.New(sc.Path, role), noop, nil

	case config.KindGoogle:
		idx, err := index.NewLinkIndex(filepath.Join(dir, linkIndexFile))
		if err != nil {
			log.Warn("link index unreadable, relying on notes markers", "err", err)
		}
		client, err := google.NewClient(ctx, dir, sc.TaskList, role, idx)
		if err != nil {
			return nil, nil, err
		}
		client.WithLogger(log)
		return client, func() {
			if err := client.Close(); err != nil {
				log.Warn("failed to save link index", "err", err)
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown source kind %q", sc.Kind)
}
