package resources

import (
	"context"
)

// DevFolder is the folder of the default development warehouse path.
const DevFolder = "/.hidden/dev"

// WarehousePathOption is a selectable warehouse path.
type WarehousePathOption struct {
	DisplayText string `json:"display_text" yaml:"display_text"`
	Value       string `json:"value" yaml:"value"`
}

// WarehousePaths fetches the warehouse paths. The endpoint is not paginated
// and its responses can be cached.
type WarehousePaths struct {
	*fetcher

	paths []WarehousePath
}

// NewWarehousePaths creates a warehouse paths fetcher.
func NewWarehousePaths(services ServiceProvider, opts ...Option) *WarehousePaths {
	return &WarehousePaths{fetcher: newFetcher(services, "warehouse-paths", "", opts)}
}

// List loads all warehouse paths, from the response cache when it holds
// them.
func (w *WarehousePaths) List(ctx context.Context) []WarehousePath {
	return w.list(ctx, true)
}

// Refresh loads all warehouse paths from the API and updates the cache.
func (w *WarehousePaths) Refresh(ctx context.Context) []WarehousePath {
	return w.list(ctx, false)
}

func (w *WarehousePaths) list(ctx context.Context, cached bool) []WarehousePath {
	service, ok := w.service(ctx)
	if !ok {
		return nil
	}

	w.clearErrors()
	key := service.BaseURL()

	var paths []WarehousePath
	if cached && w.cache != nil && w.cache.Load(key, &paths) == nil && paths != nil {
		w.logger.Debug().Str("key", key).Msg("warehouse paths served from cache")
		return w.setPaths(paths)
	}

	if err := service.Get(ctx, "", nil, &paths); err != nil {
		w.fail("list", err)
		return nil
	}
	if paths == nil {
		paths = []WarehousePath{}
	}

	if w.cache != nil {
		if err := w.cache.Save(key, paths); err != nil {
			w.logger.Debug().Err(err).Msg("failed to cache warehouse paths")
		}
	}
	return w.setPaths(paths)
}

func (w *WarehousePaths) setPaths(paths []WarehousePath) []WarehousePath {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paths = paths
	return paths
}

// Items returns the paths of the last list.
func (w *WarehousePaths) Items() []WarehousePath {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.paths
}

// DefaultDevPath returns the development path among the loaded paths.
func (w *WarehousePaths) DefaultDevPath() *WarehousePath {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for i := range w.paths {
		if w.paths[i].FolderName == DevFolder {
			p := w.paths[i]
			return &p
		}
	}
	return nil
}

// Options returns the loaded paths as "warehouse: folder" choices.
func (w *WarehousePaths) Options() []WarehousePathOption {
	w.mu.RLock()
	defer w.mu.RUnlock()
	options := make([]WarehousePathOption, len(w.paths))
	for i, p := range w.paths {
		options[i] = WarehousePathOption{
			DisplayText: p.WarehouseName + ": " + p.FolderName,
			Value:       p.PathID,
		}
	}
	return options
}
