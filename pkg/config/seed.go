package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
)

// CatalogSeedFile is the on-disk shape of one project's manager/agent/tool
// seed, loaded from <CatalogSeedPath>/<project-file>.yaml and upserted
// into pkg/store at startup.
type CatalogSeedFile struct {
	ProjectID   string                    `yaml:"project_id"`
	ProjectName string                    `yaml:"project_name"`
	Managers    []models.ManagerDefinition `yaml:"managers"`
}

// managerDefaults is merged under every parsed manager so a seed file can
// omit boilerplate like active: true.
func managerDefaults() models.ManagerDefinition {
	return models.ManagerDefinition{Active: true}
}

// LoadCatalogSeeds reads every *.yaml file directly under dir as a
// CatalogSeedFile. A missing directory yields no seeds rather than an
// error — catalog seeding is optional; operators may manage the catalog
// entirely through direct store writes instead.
func LoadCatalogSeeds(dir string) ([]CatalogSeedFile, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog seed dir %s: %w", dir, err)
	}

	var seeds []CatalogSeedFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog seed %s: %w", path, err)
		}

		var seed CatalogSeedFile
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("parse catalog seed %s: %w", path, err)
		}

		for i := range seed.Managers {
			defaults := managerDefaults()
			if err := mergo.Merge(&defaults, &seed.Managers[i], mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("merge manager defaults in %s: %w", path, err)
			}
			seed.Managers[i] = defaults
		}

		seeds = append(seeds, seed)
	}

	return seeds, nil
}

// CatalogSeeder is the subset of *store.Client the seeding step depends on.
type CatalogSeeder interface {
	SeedManager(ctx context.Context, projectID string, m models.ManagerDefinition) error
}

// ApplyCatalogSeeds upserts every manager in every seed file into store,
// so a redeployed seed file is safe to apply repeatedly.
func ApplyCatalogSeeds(ctx context.Context, store CatalogSeeder, seeds []CatalogSeedFile) error {
	for _, seed := range seeds {
		for _, m := range seed.Managers {
			if err := store.SeedManager(ctx, seed.ProjectID, m); err != nil {
				return fmt.Errorf("seed manager %s for project %s: %w", m.ManagerID, seed.ProjectID, err)
			}
		}
	}
	return nil
}
