package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/institution"
)

func institutionOrderings(insts []institution.Institution) map[string]indexCompare {
	return map[string]indexCompare{
		"name":       func(i, j int) int { return compareStrings(insts[i].Name, insts[j].Name) },
		"created_at": func(i, j int) int { return compareTimes(insts[i].CreatedAt, insts[j].CreatedAt) },
	}
}

type institutionRepository struct {
	db *DB
}

var _ institution.Repository = (*institutionRepository)(nil) // interface compliance check

func NewInstitutionRepository(db *DB) institution.Repository {
	return &institutionRepository{db: db}
}

func (repo *institutionRepository) CheckNameUniqueness(_ context.Context, name string) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, inst := range repo.db.institutions {
		if strings.EqualFold(inst.Name, name) {
			return institution.ErrNameExists
		}
	}
	return nil
}

func (repo *institutionRepository) CreateInstitution(_ context.Context, inst institution.Institution) (institution.Institution, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	inst.ID = newID()
	i := inst
	repo.db.institutions[inst.ID] = &i
	return inst, nil
}

func (repo *institutionRepository) QueryInstitutions(_ context.Context, filter *institution.QueryFilter, ordering []core.DBOrdering) ([]institution.Institution, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	insts := make([]institution.Institution, 0, len(repo.db.institutions))
	for _, inst := range repo.db.institutions {
		if filter != nil && filter.Search != "" && !containsFold(filter.Search, inst.Name) {
			continue
		}
		insts = append(insts, *inst)
	}
	fields := institutionOrderings(insts)
	sortByOrdering(insts, ordering, fields, fields["name"])
	return insts, nil
}

func (repo *institutionRepository) GetInstitution(_ context.Context, id string) (institution.Institution, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if inst, ok := repo.db.institutions[id]; ok {
		return *inst, nil
	}
	return institution.Institution{}, institution.ErrNotFound
}
