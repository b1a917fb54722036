package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	// QueueDefault is the queue every Atenea task is routed to.
	QueueDefault = "default"
	// TaskVoucherSweep flags active vouchers whose expiry has passed.
	TaskVoucherSweep = "vouchers:sweep"
)

type VoucherSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

func NewVoucherSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(VoucherSweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskVoucherSweep, body, asynq.Queue(QueueDefault)), nil
}

// VoucherExpirer is satisfied by *service.Service.
type VoucherExpirer interface {
	ExpireVouchers(ctx context.Context) (int, error)
}

type VoucherSweepJob struct {
	Expirer VoucherExpirer
	Logger  *zap.Logger
	clock   func() time.Time
}

func NewVoucherSweepJob(expirer VoucherExpirer, logger *zap.Logger) *VoucherSweepJob {
	return &VoucherSweepJob{
		Expirer: expirer,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (j *VoucherSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Expirer == nil {
		return errors.New("voucher sweep: handler not configured")
	}
	var payload VoucherSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("voucher sweep payload: %v: %w", err, asynq.SkipRetry)
	}

	start := j.now()
	logger := j.logger().With(zap.Time("scheduled_for", payload.ScheduledFor))
	expired, err := j.Expirer.ExpireVouchers(ctx)
	if err != nil {
		logger.Error("voucher sweep failed", zap.Error(err))
		return err
	}
	logger.Info("voucher sweep completed",
		zap.Int("expired", expired),
		zap.Duration("duration", j.now().Sub(start)))
	return nil
}

func (j *VoucherSweepJob) logger() *zap.Logger {
	if j.Logger != nil {
		return j.Logger.With(zap.String("job", TaskVoucherSweep))
	}
	return zap.L().With(zap.String("job", TaskVoucherSweep))
}

func (j *VoucherSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
