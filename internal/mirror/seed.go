package mirror

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"tools.velia/pipeline/timekeep/internal/atomicfile"
	"tools.velia/pipeline/timekeep/internal/session"
)

// seedUsernames are the sample users for generated activity data.
var seedUsernames = []string{"john.doe", "jane.smith", "robert.johnson", "lisa.wang", "mike.davis"}

// seedPatterns maps applications to start/end file name patterns. The %d
// is filled with a random file identifier.
var seedPatterns = map[string]struct{ start, end []string }{
	"maya": {
		start: []string{"shot%d_anim_v001.ma", "asset%d_model.ma", "scene%d_layout.mb"},
		end:   []string{"shot%d_anim_v004.ma", "asset%d_model_final.ma", "scene%d_layout_approved.mb"},
	},
	"nuke": {
		start: []string{"comp%d_v001.nk", "shot%d_precomp.nk", "cleanup%d_draft.nk"},
		end:   []string{"comp%d_v007.nk", "shot%d_precomp_final.nk", "cleanup%d_delivered.nk"},
	},
	"silhouette": {
		start: []string{"roto%d_v001.sfx", "paint%d_draft.sfx", "matte%d.sfx"},
		end:   []string{"roto%d_final.sfx", "paint%d_complete.sfx", "matte%d_approved.sfx"},
	},
	"3dequalizer": {
		start: []string{"track%d_v001.3de", "mm%d_solve.3de", "plate%d_lineup.3de"},
		end:   []string{"track%d_solved.3de", "mm%d_refined.3de", "plate%d_exported.3de"},
	},
	"photoshop": {
		start: []string{"matte%d_draft.psd", "texture%d_raw.psd", "concept%d_initial.psd"},
		end:   []string{"matte%d_final.psd", "texture%d_baked.psd", "concept%d_complete.psd"},
	},
}

// seedApplications lists the applications in a stable order for iteration.
var seedApplications = []string{"maya", "nuke", "silhouette", "3dequalizer", "photoshop"}

// Seed fills the mirror with generated activity covering the past days
// calendar days, and writes the same records to jsonPath as a combined
// JSON document (skipped when jsonPath is empty). Returns the number of
// records generated.
func (m *DB) Seed(ctx context.Context, days int, jsonPath string, rng *rand.Rand) (int, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var all []*session.Record
	today := time.Now()

	for dayOffset := days; dayOffset > 0; dayOffset-- {
		date := today.AddDate(0, 0, -dayOffset)
		dateStr := date.Format(session.DateLayout)

		// Each user has 3 to 7 sessions per day.
		for _, username := range seedUsernames {
			count := 3 + rng.Intn(5)
			for i := 0; i < count; i++ {
				app := seedApplications[rng.Intn(len(seedApplications))]
				pat := seedPatterns[app]
				fileID := 1000 + rng.Intn(9000)

				start := time.Date(date.Year(), date.Month(), date.Day(),
					8+rng.Intn(10), rng.Intn(60), rng.Intn(60), 0, time.Local)

				// 5 minutes to 2 hours active, up to 15 minutes idle.
				active := session.Seconds(300 + rng.Intn(6901))
				idle := session.Seconds(rng.Intn(901))
				total := active + idle
				end := start.Add(time.Duration(total) * time.Second)

				all = append(all, &session.Record{
					Username:    username,
					LogDate:     dateStr,
					Application: app,
					StartFile:   fmt.Sprintf(pat.start[rng.Intn(len(pat.start))], fileID),
					EndFile:     fmt.Sprintf(pat.end[rng.Intn(len(pat.end))], fileID),
					StartTime:   start.Format(session.TimeLayout),
					ActiveTime:  active,
					IdleTime:    idle,
					TotalTime:   total,
					EndTime:     end.Format(session.TimeLayout),
				})
			}
		}
	}

	if err := m.Sync(ctx, all); err != nil {
		return 0, fmt.Errorf("seed mirror: %w", err)
	}

	if jsonPath != "" {
		if err := atomicfile.WriteJSON(jsonPath, all, 0o644); err != nil {
			return 0, fmt.Errorf("write %s: %w", filepath.Base(jsonPath), err)
		}
	}

	return len(all), nil
}
