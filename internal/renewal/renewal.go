// Package renewal pushes membership and training renewals to an external
// system after qualifying sales. The queue is fire and forget: the sale is
// already committed when a job is enqueued, so failures are logged and
// dropped, never surfaced to the register.
package renewal

import (
	"context"
	"time"

	"tokokas/backend/pkg/logger"
)

// Renewer is the external membership system.
type Renewer interface {
	RenewMembership(ctx context.Context, memberID string, productID string) error
	RenewTraining(ctx context.Context, memberID string, productID string) error
}

type Job struct {
	MemberID      string
	ProductID     string
	Category      string
	TransactionID string
}

// Queue runs a single worker draining a buffered channel. Enqueue never
// blocks; when the buffer is full the job is dropped with a warning.
type Queue struct {
	renewer  Renewer
	jobs     chan Job
	done     chan struct{}
	log      *logger.Logger
	timeout  time.Duration
	training map[string]struct{}
}

// NewQueue builds a queue. trainingCategories lists the product categories
// routed to RenewTraining; everything else renews a membership.
func NewQueue(renewer Renewer, size int, trainingCategories []string, log *logger.Logger) *Queue {
	if size < 1 {
		size = 64
	}
	training := make(map[string]struct{}, len(trainingCategories))
	for _, category := range trainingCategories {
		training[category] = struct{}{}
	}
	return &Queue{
		renewer:  renewer,
		jobs:     make(chan Job, size),
		done:     make(chan struct{}),
		log:      log,
		timeout:  10 * time.Second,
		training: training,
	}
}

func (q *Queue) Start() {
	go q.run()
}

// Stop drains nothing; pending jobs are abandoned. Renewals are best
// effort and reconciled out of band.
func (q *Queue) Stop() {
	close(q.done)
}

func (q *Queue) Enqueue(job Job) {
	select {
	case q.jobs <- job:
	default:
		q.log.Warn().
			Str("member_id", job.MemberID).
			Str("transaction_id", job.TransactionID).
			Msg("renewal queue full, dropping job")
	}
}

func (q *Queue) run() {
	for {
		select {
		case <-q.done:
			return
		case job := <-q.jobs:
			q.process(job)
		}
	}
}

func (q *Queue) process(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	var err error
	if _, isTraining := q.training[job.Category]; isTraining {
		err = q.renewer.RenewTraining(ctx, job.MemberID, job.ProductID)
	} else {
		err = q.renewer.RenewMembership(ctx, job.MemberID, job.ProductID)
	}
	if err != nil {
		q.log.Error().Err(err).
			Str("member_id", job.MemberID).
			Str("product_id", job.ProductID).
			Str("transaction_id", job.TransactionID).
			Msg("renewal failed")
		return
	}
	q.log.Info().
		Str("member_id", job.MemberID).
		Str("product_id", job.ProductID).
		Msg("renewal processed")
}
