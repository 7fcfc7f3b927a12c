package main

import (
	"errors"

	"github.com/urfave/cli/v2"

	"dice-drop-bot/internal/common/logger"
	dd "dice-drop-bot/internal/domain/dice"
	"dice-drop-bot/internal/platform/store"
	"dice-drop-bot/internal/service/ledger"
)

func exportDocument(cctx *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	from := cctx.String("from")
	if from == "" {
		from = cfg.Store.Backend
	}

	src, err := store.Open(cctx.Context, cfg, from)
	if err != nil {
		return err
	}
	defer src.Close()

	l, err := ledger.New(cctx.Context, src)
	if err != nil {
		return err
	}
	out := cctx.String("out")
	if err := store.ExportFile(out, l.Snapshot()); err != nil {
		return err
	}
	logger.Info().Str("backend", from).Str("out", out).Msg("Document exported")
	return nil
}

func migrateDocument(cctx *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	from, in, to := cctx.String("from"), cctx.String("in"), cctx.String("to")

	var doc *dd.Document
	switch {
	case in != "":
		doc, err = store.ImportFile(in)
	case from != "":
		var src store.Backend
		src, err = store.Open(cctx.Context, cfg, from)
		if err != nil {
			return err
		}
		defer src.Close()
		doc, err = src.Load(cctx.Context)
	default:
		return errors.New("one of --from or --in is required")
	}
	if err != nil {
		return err
	}

	dst, err := store.Open(cctx.Context, cfg, to)
	if err != nil {
		return err
	}
	defer dst.Close()
	if err := dst.Save(cctx.Context, doc); err != nil {
		return err
	}
	logger.Info().Str("to", to).Int("communities", len(doc.Users)).Msg("Document migrated")
	return nil
}
