// Package config defines the rotation jobs and loads them from viper.
package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MeKo-Tech/tourtiles/internal/backup"
	"github.com/MeKo-Tech/tourtiles/internal/imageio"
	"github.com/MeKo-Tech/tourtiles/internal/locate"
	"github.com/spf13/viper"
)

// Kind distinguishes in-place rotation jobs from front derivation jobs.
type Kind string

const (
	KindRotate Kind = "rotate"
	KindFront  Kind = "front"
)

// Job describes one set of tiles to transform.
type Job struct {
	Name        string   `mapstructure:"name" yaml:"name"`
	Description string   `mapstructure:"description" yaml:"description,omitempty"`
	Kind        Kind     `mapstructure:"kind" yaml:"kind"`
	Roots       []string `mapstructure:"roots" yaml:"roots"`
	Mode        string   `mapstructure:"mode" yaml:"mode"`
	Targets     []string `mapstructure:"targets" yaml:"targets"`
	Backup      string   `mapstructure:"backup" yaml:"backup"`
	Quality     int      `mapstructure:"quality" yaml:"quality"`
	Lossless    bool     `mapstructure:"lossless" yaml:"lossless,omitempty"`
	// AllRoots processes every existing root instead of the first one found.
	AllRoots bool `mapstructure:"all_roots" yaml:"all_roots,omitempty"`
}

// BackupPolicy returns the parsed backup policy.
func (j Job) BackupPolicy() backup.Policy {
	p, _ := backup.ParsePolicy(j.Backup)
	return p
}

// FrontFiles splits the targets of a front job into the source and the outputs.
func (j Job) FrontFiles() (source string, outputs []string) {
	if len(j.Targets) == 0 {
		return "", nil
	}
	return j.Targets[0], j.Targets[1:]
}

// MatchMode returns the parsed match mode.
func (j Job) MatchMode() locate.Mode {
	m, _ := locate.ParseMode(j.Mode)
	return m
}

// Validate checks a job for configuration errors.
func (j Job) Validate() error {
	if strings.TrimSpace(j.Name) == "" {
		return fmt.Errorf("job without name")
	}
	switch j.Kind {
	case KindRotate, KindFront:
	default:
		return fmt.Errorf("job %s: unknown kind %q (rotate, front)", j.Name, j.Kind)
	}
	if len(j.Roots) == 0 {
		return fmt.Errorf("job %s: no roots", j.Name)
	}
	if j.Kind == KindRotate {
		if _, err := locate.ParseMode(j.Mode); err != nil {
			return fmt.Errorf("job %s: %w", j.Name, err)
		}
	}
	if len(j.Targets) == 0 {
		return fmt.Errorf("job %s: no targets", j.Name)
	}
	if j.Kind == KindFront && len(j.Targets) < 2 {
		return fmt.Errorf("job %s: front jobs need a source and at least one output", j.Name)
	}
	if _, err := backup.ParsePolicy(j.Backup); err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	if j.Quality < 1 || j.Quality > 100 {
		return fmt.Errorf("job %s: quality %d outside 1..100", j.Name, j.Quality)
	}
	return nil
}

func (j Job) withDefaults() Job {
	if j.Kind == "" {
		j.Kind = KindRotate
	}
	if j.Mode == "" && j.Kind == KindRotate {
		j.Mode = string(locate.ModeFiles)
	}
	if j.Backup == "" {
		j.Backup = string(backup.None)
	}
	if j.Quality == 0 {
		j.Quality = imageio.DefaultQuality
	}
	return j
}

// candidates expands a house path under the usual asset locations.
func candidates(rel ...string) []string {
	var out []string
	for _, base := range []string{"public/assets", "assets"} {
		for _, r := range rel {
			out = append(out, filepath.Join(base, r))
		}
	}
	return out
}

func premiumRoots(houses ...string) []string {
	out := make([]string, 0, len(houses))
	for _, h := range houses {
		out = append(out, filepath.Join("public/assets/premium", h, "360"))
	}
	return out
}

var udTargets = []string{"u.jpg", "d.jpg"}

// DefaultJobs returns the built-in jobs.
func DefaultJobs() []Job {
	return []Job{
		{
			Name:        "aspen-living",
			Description: "Aspen living room up/down tiles, first original kept as *_backup.jpg",
			Roots:       []string{"public/assets/premium/Aspen/360/living"},
			Mode:        string(locate.ModeFiles),
			Targets:     udTargets,
			Backup:      string(backup.Stem),
			Quality:     95,
		},
		{
			Name:        "everest",
			Description: "Everest up/down tiles in every room",
			Roots:       []string{"public/assets/premium/Everest/360"},
			Mode:        string(locate.ModeRooms),
			Targets:     udTargets,
			Quality:     95,
		},
		{
			Name:        "neo",
			Description: "Every u.jpg/d.jpg below the Neo collection",
			Roots:       []string{"public/assets/neo"},
			Mode:        string(locate.ModeWalk),
			Targets:     udTargets,
			Quality:     95,
		},
		{
			Name:        "neo-cubemap",
			Description: "Neo white and dark scheme up/down tiles",
			Roots:       []string{"public/assets/neo"},
			Mode:        string(locate.ModeGlob),
			Targets: []string{
				"*/360/white/*/u.jpg",
				"*/360/white/*/d.jpg",
				"*/360/dark/*/u.jpg",
				"*/360/dark/*/d.jpg",
			},
			Quality: 95,
		},
		{
			Name:        "pine",
			Description: "All Pine up/down tiles, JPEG and WebP",
			Roots:       candidates("Pine/360", "pine/360"),
			Mode:        string(locate.ModeGlob),
			Targets:     []string{"**/u.jpg", "**/d.jpg", "**/u.webp", "**/d.webp"},
			Backup:      string(backup.Timestamp),
			Quality:     95,
		},
		{
			Name:        "birch-bathroom",
			Description: "Birch bathroom up/down tiles",
			Roots:       []string{"public/assets/birch/360/bathroom"},
			Mode:        string(locate.ModeFiles),
			Targets:     []string{"u.jpg", "u.webp", "d.jpg", "d.webp"},
			Quality:     95,
		},
		{
			Name:        "premium",
			Description: "Up/down tiles of every room of the premium houses",
			Roots:       premiumRoots("Aspen", "Canyon", "Redwood", "Willow", "Sequoia"),
			Mode:        string(locate.ModeRooms),
			Targets:     udTargets,
			Quality:     95,
			AllRoots:    true,
		},
		{
			Name:        "cwd",
			Description: "Up/down tiles in the current directory",
			Roots:       []string{"."},
			Mode:        string(locate.ModeFiles),
			Targets:     []string{"u.jpg", "u.webp", "d.jpg", "d.webp"},
			Quality:     95,
		},
		{
			Name:        "hemlock-front",
			Description: "Hemlock bathroom front face built from the back face",
			Kind:        KindFront,
			Roots:       candidates("Hemlock/360/bathroom", "hemlock/360/bathroom"),
			Targets:     []string{"b.webp", "f.webp", "f.jpg"},
			Backup:      string(backup.Suffix),
			Quality:     95,
		},
	}
}

// Jobs is an ordered set of jobs.
type Jobs []Job

// Get returns the job with the given name.
func (js Jobs) Get(name string) (Job, bool) {
	for _, j := range js {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}

// Names returns the job names.
func (js Jobs) Names() []string {
	names := make([]string, 0, len(js))
	for _, j := range js {
		names = append(names, j.Name)
	}
	return names
}

// OfKind returns the jobs of one kind.
func (js Jobs) OfKind(k Kind) Jobs {
	var out Jobs
	for _, j := range js {
		if j.Kind == k {
			out = append(out, j)
		}
	}
	return out
}

// Load returns the built-in jobs merged with the "jobs" list from v.
// A configured job replaces the built-in job of the same name; new names are
// appended in alphabetical order.
func Load(v *viper.Viper) (Jobs, error) {
	var configured []Job
	if v != nil && v.IsSet("jobs") {
		if err := v.UnmarshalKey("jobs", &configured); err != nil {
			return nil, fmt.Errorf("failed to parse jobs: %w", err)
		}
	}
	return Merge(DefaultJobs(), configured)
}

// Merge overlays configured jobs onto base and validates the result.
func Merge(base, configured []Job) (Jobs, error) {
	out := make(Jobs, 0, len(base)+len(configured))
	index := make(map[string]int, len(base))
	for _, j := range base {
		index[j.Name] = len(out)
		out = append(out, j.withDefaults())
	}

	var added []Job
	for _, j := range configured {
		j = j.withDefaults()
		if i, ok := index[j.Name]; ok {
			out[i] = j
			continue
		}
		added = append(added, j)
	}
	sort.Slice(added, func(a, b int) bool { return added[a].Name < added[b].Name })

	seen := make(map[string]bool)
	for _, j := range added {
		if seen[j.Name] {
			return nil, fmt.Errorf("job %s defined twice", j.Name)
		}
		seen[j.Name] = true
		index[j.Name] = len(out)
		out = append(out, j)
	}

	for _, j := range out {
		if err := j.Validate(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
