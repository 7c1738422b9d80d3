package di

import (
	"clarity/internal/persistence"
	"clarity/internal/persistence/interfaces"
	"clarity/internal/providers"
	"clarity/internal/realtime"
	"clarity/internal/services"
	"clarity/internal/structures"
)

// leadSink routes pushed leads into the dashboard service.
func leadSink(service services.DashboardServiceInterface) realtime.LeadSink {
	return service
}

// logProvider closes the log files on shutdown.
func logProvider(conf *structures.Config) (providers.Logger, func(), error) {
	logger, err := providers.NewLogProvider(conf)
	if err != nil {
		return nil, nil, err
	}
	return logger, logger.Close, nil
}

// compressor releases the zstd encoder and decoder after the final save.
func compressor() (interfaces.CompressorInterface, func(), error) {
	c, err := persistence.NewZstdCompressor()
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}
