package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/polarmet/antartida-weather/internal/antartida"
)

// warmStations are the stations the warmer keeps fresh.
var warmStations = []antartida.Station{
	antartida.StationGabrielDeCastilla,
	antartida.StationJuanCarlosI,
}

// Scheduler periodically refreshes the trailing measurement window for both
// stations so interactive requests land on a warm cache. It is optional:
// an interval of zero disables it entirely.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *antartida.Service
	interval  time.Duration
	window    time.Duration
}

// New creates a new Scheduler.
func New(service *antartida.Service, interval, window time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		interval:  interval,
		window:    window,
	}
}

// Start schedules the periodic warm job and starts the underlying
// scheduler. A non-positive interval is a no-op.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		log.Println("scheduler: cache warming disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		log.Println("scheduler: running cache warm job")

		for _, station := range warmStations {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)

			end := time.Now().UTC().Truncate(time.Hour)
			start := end.Add(-s.window)
			_, err := s.service.GetData(ctx, station, start, end, antartida.GranularityNone, nil)
			cancel()
			if err != nil {
				log.Printf("scheduler: warm fetch failed for %s: %v", station, err)
			}
		}

		log.Println("scheduler: completed cache warm job")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
