package interfaces

import "context"

type CompressorInterface interface {
	Compress(val []byte) ([]byte, error)
	Decompress(val []byte) ([]byte, error)
	Close()
}

type SchedulerInterface interface {
	Init()
	Stop()
	Restore(ctx context.Context) error
	Persist(ctx context.Context) error
}
