package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Job é um trabalho periódico supervisionado
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// JobStats é o retrato de execução de um trabalho
type JobStats struct {
	Runs         int
	Failures     int
	LastError    string
	LastSuccess  time.Time
	LastDuration time.Duration
}

// Supervisor roda cada trabalho em sua própria goroutine com cadência
// própria, captura pânicos e mantém estatísticas por trabalho.
type Supervisor struct {
	mu    sync.Mutex
	jobs  []Job
	stats map[string]*JobStats
	wg    sync.WaitGroup
}

// NewSupervisor cria o supervisor de trabalhos em background
func NewSupervisor() *Supervisor {
	return &Supervisor{stats: make(map[string]*JobStats)}
}

// Register adiciona um trabalho. Deve ser chamado antes de Start.
func (s *Supervisor) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	s.stats[job.Name] = &JobStats{}
}

// Start dispara todos os trabalhos registrados. Cada um roda uma vez de
// imediato e depois na sua cadência, até o contexto ser cancelado.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	jobs := make([]Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	for _, job := range jobs {
		s.wg.Add(1)
		go func(job Job) {
			defer s.wg.Done()
			log.Printf("Trabalho %s iniciado (cadência %v)", job.Name, job.Interval)

			s.runOnce(ctx, job)

			ticker := time.NewTicker(job.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.runOnce(ctx, job)
				}
			}
		}(job)
	}
}

// Wait bloqueia até todos os trabalhos encerrarem (após cancelar o contexto)
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Health devolve uma cópia das estatísticas de todos os trabalhos
func (s *Supervisor) Health() map[string]JobStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]JobStats, len(s.stats))
	for name, st := range s.stats {
		out[name] = *st
	}
	return out
}

func (s *Supervisor) runOnce(ctx context.Context, job Job) {
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Trabalho %s entrou em pânico: %v", job.Name, r)
				err = &panicError{value: r}
			}
		}()
		return job.Run(ctx)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[job.Name]
	st.Runs++
	st.LastDuration = time.Since(start)
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
		log.Printf("Trabalho %s falhou: %v", job.Name, err)
	} else {
		st.LastError = ""
		st.LastSuccess = time.Now()
	}
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("pânico durante a execução: %v", e.value)
}
