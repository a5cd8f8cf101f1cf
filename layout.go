package chunkmap

import (
	"github.com/gostonefire/chunkmap/mapstore"
	"github.com/gostonefire/chunkmap/skiplist"
)

// Creator - Lays out a new structure of type H sized for maxCount entries
type Creator[H any] interface {
	SizeFor(maxCount int64) int64
	Create(storage mapstore.Storage, maxCount int64) (H, error)
}

// Opener - Reads back a structure of type H laid out earlier
type Opener[H any] interface {
	Open(storage mapstore.Storage) (H, error)
}

// Grower - Tells how big a structure of type H is and copies it into a bigger one. Resume is called on the
// structure still in use when growing it failed.
type Grower[H any] interface {
	MaxCount(h H) int64
	Capacity(h H) int64
	CopyTo(from, to H, relocate func(from, to int64) error) error
	Resume(h H)
}

// Layout - Everything the engine needs to keep a growable structure of type H in chunks
type Layout[H any] interface {
	Creator[H]
	Opener[H]
	Grower[H]
}

// mapLayout - Layout of plain hash maps
type mapLayout struct {
	params mapstore.Params
}

func (M mapLayout) withMaxCount(maxCount int64) mapstore.Params {
	params := M.params
	params.MaxCount = maxCount
	return params
}

func (M mapLayout) SizeFor(maxCount int64) int64 {
	return mapstore.SizeFor(M.withMaxCount(maxCount))
}

func (M mapLayout) Create(storage mapstore.Storage, maxCount int64) (*mapstore.MapStore, error) {
	return mapstore.Create(storage, M.withMaxCount(maxCount))
}

func (M mapLayout) Open(storage mapstore.Storage) (*mapstore.MapStore, error) {
	return mapstore.Open(storage, M.params.HashAlgorithm)
}

func (M mapLayout) MaxCount(h *mapstore.MapStore) int64 {
	return h.MaxCount()
}

func (M mapLayout) Capacity(h *mapstore.MapStore) int64 {
	return h.Capacity()
}

func (M mapLayout) CopyTo(from, to *mapstore.MapStore, relocate func(from, to int64) error) error {
	return from.CopyTo(to, relocate)
}

// Resume - A custom hash algorithm is shared by every chunk the map lives in, so after a failed grow it is
// handed back the table size of h
func (M mapLayout) Resume(h *mapstore.MapStore) {
	if M.params.HashAlgorithm != nil {
		M.params.HashAlgorithm.SetTableSize(h.Capacity())
	}
}

// sortedLayout - Layout of skip list backed maps
type sortedLayout struct {
	params skiplist.Params
}

func (S sortedLayout) withMaxCount(maxCount int64) skiplist.Params {
	params := S.params
	params.MaxCount = maxCount
	return params
}

func (S sortedLayout) SizeFor(maxCount int64) int64 {
	return skiplist.SizeFor(S.withMaxCount(maxCount))
}

func (S sortedLayout) Create(storage mapstore.Storage, maxCount int64) (*skiplist.SkipList, error) {
	return skiplist.Create(storage, S.withMaxCount(maxCount))
}

func (S sortedLayout) Open(storage mapstore.Storage) (*skiplist.SkipList, error) {
	return skiplist.Open(storage, S.params.Comparator, S.params.Random)
}

func (S sortedLayout) MaxCount(h *skiplist.SkipList) int64 {
	return h.MaxCount()
}

func (S sortedLayout) Capacity(h *skiplist.SkipList) int64 {
	return h.Store().Capacity()
}

func (S sortedLayout) CopyTo(from, to *skiplist.SkipList, relocate func(from, to int64) error) error {
	return from.CopyTo(to, relocate)
}

func (S sortedLayout) Resume(h *skiplist.SkipList) {}
