package announcement

import (
	"context"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/techsoc/clubhub/core"
)

// bigBatchSize is the recipient count above which the dispatch result carries
// an estimated-duration hint; pacing makes big batches slow by design of the
// provider's rate limit, not ours.
const bigBatchSize = 10

// dispatcher fans an announcement out to its recipients with a bounded
// worker pool, pacing provider calls through a token bucket. One Delivery
// row is recorded per attempt, success or not; an individual failure never
// aborts the batch.
type dispatcher struct {
	repo    Repository
	sender  core.EmailSender
	logger  core.Logger
	limiter *rate.Limiter
	workers int
}

func newDispatcher(repo Repository, sender core.EmailSender, logger core.Logger, conf *core.Config) *dispatcher {
	workers := conf.Announcement.Workers
	if workers < 1 {
		workers = 1
	}
	sendRate := conf.Announcement.SendRate
	if sendRate <= 0 {
		sendRate = 2
	}
	burst := conf.Announcement.SendBurst
	if burst < 1 {
		burst = 1
	}
	return &dispatcher{
		repo:    repo,
		sender:  sender,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(sendRate), burst),
		workers: workers,
	}
}

func (d *dispatcher) Dispatch(ctx context.Context, ann Announcement, recipients []string) DispatchResult {
	res := DispatchResult{Requested: len(recipients)}
	if len(recipients) > bigBatchSize {
		est := time.Duration(float64(len(recipients)) / float64(d.limiter.Limit()) * float64(time.Second))
		res.EstimatedDuration = est.Round(time.Second).String()
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		jobs = make(chan string)
	)
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for email := range jobs {
				if d.sendOne(ctx, ann, email) {
					mu.Lock()
					res.Sent++
					mu.Unlock()
				} else {
					mu.Lock()
					res.Failed++
					mu.Unlock()
				}
			}
		}()
	}

	// Stop handing out recipients once the context is gone. Unattempted
	// recipients get no Delivery row; a later `resend failed` will not see
	// them.
feed:
	for _, email := range recipients {
		select {
		case jobs <- email:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	res.Message = fmt.Sprintf("Sent to %d of %d recipients", res.Sent, res.Requested)
	return res
}

// sendOne performs one provider call and records its Delivery row.
// Returns true on a successful send.
func (d *dispatcher) sendOne(ctx context.Context, ann Announcement, email string) bool {
	now := time.Now().UTC()
	delivery := Delivery{
		ID:             uuid.New().String(),
		AnnouncementID: ann.ID,
		Email:          email,
		Status:         DeliveryPending,
		CreatedAt:      now,
	}

	if err := d.limiter.Wait(ctx); err != nil {
		// the recipient was already claimed; record the interruption so it
		// shows up as retryable
		delivery.Status = DeliveryFailed
		delivery.Error = "dispatch interrupted: " + err.Error()
		d.record(delivery)
		return false
	}

	providerID, err := d.sender.SendMessage(ctx, d.emailFor(ann, email))
	sentAt := time.Now().UTC()
	if err != nil {
		delivery.Status = DeliveryFailed
		delivery.Error = err.Error()
	} else {
		delivery.Status = DeliverySent
		delivery.ProviderID = providerID
		delivery.SentAt = &sentAt
	}
	d.record(delivery)
	return err == nil
}

// record persists a Delivery row for an attempt that already happened.
// It runs on a fresh context: cancellation of the dispatch context must not
// lose the row for a send that went out.
func (d *dispatcher) record(delivery Delivery) {
	if _, err := d.repo.CreateDelivery(context.Background(), delivery); err != nil {
		d.logger.Error(fmt.Sprintf("recording delivery for %s: %v", delivery.Email, err), err)
	}
}

func (d *dispatcher) emailFor(ann Announcement, recipient string) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Address: recipient}},
		Subject:      subjectFor(ann),
		TemplateName: "announcement",
		TemplateData: struct {
			Title  string
			Body   htmltmpl.HTML
			Sender string
		}{
			Title:  ann.Title,
			Body:   htmltmpl.HTML(ann.Message),
			Sender: ann.SenderName,
		},
	}
}

func subjectFor(ann Announcement) string {
	switch ann.Priority {
	case PriorityUrgent:
		return "[URGENT] " + ann.Title
	case PriorityHigh:
		return "[Important] " + ann.Title
	}
	return ann.Title
}
