package cli

import (
	"context"
	"log/slog"

	"github.com/ALT-F4-LLC/lp2jira/internal/attachment"
	"github.com/ALT-F4-LLC/lp2jira/internal/compile"
	"github.com/ALT-F4-LLC/lp2jira/internal/config"
	"github.com/ALT-F4-LLC/lp2jira/internal/entity"
	"github.com/ALT-F4-LLC/lp2jira/internal/export"
	"github.com/ALT-F4-LLC/lp2jira/internal/fragment"
	"github.com/ALT-F4-LLC/lp2jira/internal/reconcile"
	"github.com/ALT-F4-LLC/lp2jira/internal/source/launchpad"
	"github.com/ALT-F4-LLC/lp2jira/internal/tracker/jira"
	"github.com/ALT-F4-LLC/lp2jira/internal/translate"
)

func newStore(cfg *config.Config) *fragment.Store {
	return fragment.NewStore(cfg.Local.Users, cfg.Local.Issues, cfg.Local.Updates)
}

func newExporter(cfg *config.Config, tr *translate.Translator, store *fragment.Store, recorder export.Recorder, logger *slog.Logger) *export.Exporter {
	src := launchpad.NewClient(cfg.Launchpad.APIURL, cfg.Launchpad.Project)
	fetcher := attachment.NewFetcher(src, cfg.Local.Attachments, cfg.Jira.AttachmentsURL, logger)
	builder := entity.NewBuilder(src, tr, fetcher, entity.Settings{
		Project:      cfg.Launchpad.Project,
		Groups:       cfg.Groups(),
		CustomFields: cfg.Jira.ExportCustomFields,
	}, logger)
	users := func(ctx context.Context, name string) (entity.Entity, error) {
		u, err := builder.User(ctx, name)
		if err != nil {
			return nil, err
		}
		return u, nil
	}
	pipeline := export.NewPipeline(store, cfg.NewBundle, users, recorder, logger)
	return export.NewExporter(src, builder, pipeline, recorder, logger)
}

func newCompiler(cfg *config.Config, store *fragment.Store, logger *slog.Logger) *compile.Compiler {
	return compile.New(store, cfg.NewBundle, cfg.IssuesFile(), cfg.LinksFile(), logger)
}

func newReconciler(cfg *config.Config, store *fragment.Store, recorder export.Recorder, logger *slog.Logger) *reconcile.Reconciler {
	client := jira.NewClient(cfg.Jira.URL, cfg.Jira.Username, cfg.Jira.Token, cfg.Jira.ExternalIDField)
	return reconcile.New(client, store, cfg.NewBundle, reconcile.Settings{
		ProjectKey:      cfg.Jira.Key,
		ExternalIDField: cfg.Jira.ExternalIDField,
	}, recorder, logger)
}
