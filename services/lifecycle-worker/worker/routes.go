package worker

import (
	"context"

	"github.com/Mutter0815/ListSync/internal/campaign"
	"github.com/Mutter0815/ListSync/internal/listsync"
	"github.com/Mutter0815/ListSync/pkg/logx"
	"github.com/Mutter0815/ListSync/pkg/model"
)

type Services struct {
	Dispatcher *listsync.Dispatcher
	Refresher  *listsync.Refresher
	Campaigns  *campaign.Service
	Reconciler *campaign.Reconciler
	Reports    *campaign.ReportGenerator
}

// Routes binds every task type to its body. Payload decode errors are
// permanent and escalate on the first attempt.
func Routes(s Services) map[model.TaskType]Handler {
	return map[model.TaskType]Handler{
		model.TaskListModify: func(ctx context.Context, t model.Task) error {
			var p model.ListModification
			if err := t.Decode(&p); err != nil {
				return err
			}
			_, err := s.Dispatcher.Sync(ctx, p)
			return err
		},
		model.TaskListGenerate: func(ctx context.Context, t model.Task) error {
			var p model.ListGeneration
			if err := t.Decode(&p); err != nil {
				return err
			}
			_, err := s.Refresher.Generate(ctx, p)
			return err
		},
		model.TaskListGenerateAll: func(ctx context.Context, _ model.Task) error {
			res, err := s.Refresher.GenerateAll(ctx)
			logx.L().Infow("segments_generated", "segments", len(res.Segments), "deactivated", len(res.Deactivated))
			return err
		},
		model.TaskCampaignCreate: func(ctx context.Context, t model.Task) error {
			var p model.CampaignCreate
			if err := t.Decode(&p); err != nil {
				return err
			}
			_, err := s.Campaigns.Create(ctx, p)
			return err
		},
		model.TaskCampaignImport: func(ctx context.Context, t model.Task) error {
			var p model.CampaignImport
			if len(t.Payload) > 0 {
				if err := t.Decode(&p); err != nil {
					return err
				}
			}
			_, err := s.Campaigns.Import(ctx, p.Since)
			return err
		},
		model.TaskCampaignStats: func(ctx context.Context, t model.Task) error {
			var p model.CampaignRef
			if err := t.Decode(&p); err != nil {
				return err
			}
			_, err := s.Reconciler.Reconcile(ctx, p.CampaignID)
			return err
		},
		model.TaskCampaignReports: func(ctx context.Context, t model.Task) error {
			var p model.CampaignRef
			if err := t.Decode(&p); err != nil {
				return err
			}
			_, err := s.Reports.Generate(ctx, p.CampaignID)
			return err
		},
	}
}
