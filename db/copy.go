// ABOUTME: Copies document collections between stores
// ABOUTME: Backs the migrate tool that moves data between the SQLite and Badger backends
package db

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// CopyStats counts documents per collection.
type CopyStats struct {
	Copied  int
	Skipped int
}

// Copy inserts every document of each collection from src into dst. Documents
// whose id already exists in dst are skipped. With dryRun nothing is written.
func Copy(ctx context.Context, src, dst Store, collections []string, dryRun bool, log *zap.Logger) (map[string]CopyStats, error) {
	if log == nil {
		log = zap.NewNop()
	}
	stats := make(map[string]CopyStats, len(collections))

	for _, collection := range collections {
		docs, err := src.FindAll(ctx, collection, nil)
		if err != nil {
			return stats, err
		}

		var st CopyStats
		for _, doc := range docs {
			var head struct {
				PublicID int64 `json:"public_id"`
			}
			if err := json.Unmarshal(doc, &head); err != nil {
				return stats, Error.Wrap(err)
			}

			if dryRun {
				if _, err := dst.Get(ctx, collection, head.PublicID); err == nil {
					st.Skipped++
				} else if ErrNotFound.Has(err) {
					st.Copied++
				} else {
					return stats, err
				}
				continue
			}

			switch err := dst.Insert(ctx, collection, head.PublicID, doc); {
			case err == nil:
				st.Copied++
			case ErrDuplicate.Has(err):
				st.Skipped++
			default:
				return stats, err
			}
		}

		stats[collection] = st
		log.Info("collection copied",
			zap.String("collection", collection),
			zap.Int("copied", st.Copied),
			zap.Int("skipped", st.Skipped),
			zap.Bool("dry_run", dryRun),
		)
	}
	return stats, nil
}
