package cli

import (
	"context"
	"fmt"
	"path"

	"github.com/credportal/credportal/engine/attachment"
	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/pkg/config"
)

// checkStorage writes and removes a marker file below the upload root.
func checkStorage(ctx context.Context, cfg *config.Config) error {
	return writeCheck(ctx, attachment.NewOSStore(cfg.Storage.RootDir), attachment.NewLayout(cfg.Storage.URLPrefix))
}

func writeCheck(ctx context.Context, store attachment.Store, layout attachment.Layout) error {
	id, err := core.NewID()
	if err != nil {
		return err
	}
	key := path.Join(layout.Root(), ".writecheck-"+id.String())
	if err := store.Write(ctx, key, []byte("ok")); err != nil {
		return fmt.Errorf("upload storage is not writable: %w", err)
	}
	if err := store.Remove(ctx, key); err != nil {
		return fmt.Errorf("upload storage write check cleanup: %w", err)
	}
	return nil
}
