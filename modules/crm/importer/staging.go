package importer

import (
	"context"

	"github.com/casavia/estate-crm/modules/crm/domain/importerror"
)

// staging buffers drafts and error entries during a file scan and writes them
// out in bounded batches, so arbitrarily large files never build one giant
// insert.
type staging[T any] struct {
	ctx         context.Context
	batch       int
	drafts      []T
	errs        []importerror.Entry
	writeDrafts func(context.Context, []T) error
	writeErrs   func(context.Context, []importerror.Entry) error

	staged     int
	errorCount int
}

func newStaging[T any](
	ctx context.Context,
	batch int,
	writeDrafts func(context.Context, []T) error,
	writeErrs func(context.Context, []importerror.Entry) error,
) *staging[T] {
	return &staging[T]{
		ctx:         ctx,
		batch:       batch,
		writeDrafts: writeDrafts,
		writeErrs:   writeErrs,
	}
}

func (s *staging[T]) add(draft T, errs []importerror.Entry, staged bool) error {
	if staged {
		s.drafts = append(s.drafts, draft)
		s.staged++
	}
	s.errs = append(s.errs, errs...)
	s.errorCount += len(errs)
	if len(s.drafts) >= s.batch || len(s.errs) >= s.batch {
		return s.flush()
	}
	return nil
}

func (s *staging[T]) flush() error {
	if len(s.drafts) > 0 {
		if err := s.writeDrafts(s.ctx, s.drafts); err != nil {
			return err
		}
		s.drafts = s.drafts[:0]
	}
	if len(s.errs) > 0 {
		if err := s.writeErrs(s.ctx, s.errs); err != nil {
			return err
		}
		s.errs = s.errs[:0]
	}
	return nil
}
