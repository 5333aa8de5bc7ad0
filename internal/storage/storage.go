package storage

import (
	"context"
	"fmt"
	"log"
	"sync"

	"foldermeta/internal/cache"
	"foldermeta/internal/providers"
	"foldermeta/internal/query"
)

// Storage 绑定后端、缓存和查询集的句柄工厂
type Storage struct {
	backend     providers.Backend
	store       cache.Store
	querySet    *QuerySet
	recorder    query.HistoryRecorder
	searchCache cache.Store

	mutex sync.Mutex
	list  *List
	data  map[string]*Data
}

// New 创建Storage，store为nil时只能使用实时查询
func New(backend providers.Backend, store cache.Store, querySet *QuerySet, recorder query.HistoryRecorder) *Storage {
	return &Storage{
		backend:     backend,
		store:       store,
		querySet:    querySet,
		recorder:    recorder,
		searchCache: cache.NewMemoryStore(0),
		data:        make(map[string]*Data),
	}
}

// Backend 底层后端
func (s *Storage) Backend() providers.Backend {
	return s.backend
}

// QuerySet 查询集
func (s *Storage) QuerySet() *QuerySet {
	return s.querySet
}

func (s *Storage) listCache(list *List) *cache.ListCache {
	if s.store == nil {
		return nil
	}
	return cache.NewListCache(s.store, list.ID())
}

// List 获取后端对应的列表句柄，同一后端只创建一次
func (s *Storage) List(ctx context.Context) (*List, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.listLocked(ctx)
}

func (s *Storage) listLocked(ctx context.Context) (*List, error) {
	if s.list != nil {
		return s.list, nil
	}

	resolver, err := s.backend.Namespace(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve namespace: %w", err)
	}

	list := NewList(s.backend.Parameters(), resolver.User())
	if err := s.querySet.AddListQuerySet(list, ListParams{
		Backend: s.backend,
		Cache:   s.listCache(list),
	}); err != nil {
		return nil, err
	}

	log.Printf("Created folder list %s with queries %v", list.ID(), list.Tags())
	s.list = list
	return list, nil
}

// Data 获取文件夹的数据句柄，类型由列表的元数据查询确定
func (s *Storage) Data(ctx context.Context, folder string) (*Data, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if data, ok := s.data[folder]; ok {
		return data, nil
	}

	list, err := s.listLocked(ctx)
	if err != nil {
		return nil, err
	}
	metadata, err := list.MetadataQuery()
	if err != nil {
		return nil, err
	}
	types, err := metadata.ListTypes(ctx)
	if err != nil {
		return nil, err
	}
	folderType, ok := types[folder]
	if !ok {
		return nil, providers.NewNotFoundError("storage", "data", folder)
	}

	data := NewData(list, folder, folderType)
	if err := s.querySet.AddDataQuerySet(data, DataParams{
		Backend:     s.backend,
		Cache:       s.listCache(list),
		Recorder:    s.recorder,
		SearchCache: s.searchCache,
	}); err != nil {
		return nil, err
	}

	s.data[folder] = data
	return data, nil
}

// Synchronize 同步列表句柄，并清空数据句柄
func (s *Storage) Synchronize(ctx context.Context) error {
	list, err := s.List(ctx)
	if err != nil {
		return err
	}
	if err := list.Synchronize(ctx); err != nil {
		return err
	}

	s.mutex.Lock()
	s.data = make(map[string]*Data)
	s.searchCache = cache.NewMemoryStore(0)
	s.mutex.Unlock()
	return nil
}
