package inmemdb

import (
	"context"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/document"
)

func documentOrderings(docs []document.Document) map[string]indexCompare {
	return map[string]indexCompare{
		"name":       func(i, j int) int { return compareStrings(docs[i].Name, docs[j].Name) },
		"created_at": func(i, j int) int { return compareTimes(docs[i].CreatedAt, docs[j].CreatedAt) },
		"size": func(i, j int) int {
			switch {
			case docs[i].Size < docs[j].Size:
				return -1
			case docs[i].Size > docs[j].Size:
				return 1
			}
			return 0
		},
	}
}

type documentRepository struct {
	db *DB
}

var _ document.Repository = (*documentRepository)(nil) // interface compliance check

func NewDocumentRepository(db *DB) document.Repository {
	return &documentRepository{db: db}
}

func (repo *documentRepository) CreateDocument(_ context.Context, doc document.Document) (document.Document, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	doc.ID = newID()
	d := doc
	repo.db.documents[doc.ID] = &d
	return doc, nil
}

func (repo *documentRepository) matchDocument(doc *document.Document, filter *document.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" && !containsFold(filter.Search, doc.Name) {
		return false
	}
	if filter.ClassID != "" && doc.ClassID != filter.ClassID {
		return false
	}
	if filter.OwnerID != "" && doc.OwnerID != filter.OwnerID {
		return false
	}
	if filter.StudentID != "" && (doc.ClassID == "" || !repo.db.isEnrolled(doc.ClassID, filter.StudentID)) {
		return false
	}
	return true
}

func (repo *documentRepository) QueryDocuments(_ context.Context, filter *document.QueryFilter, ordering []core.DBOrdering) ([]document.Document, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	docs := make([]document.Document, 0)
	for _, doc := range repo.db.documents {
		if repo.matchDocument(doc, filter) {
			docs = append(docs, *doc)
		}
	}
	// newest first by default
	sortByOrdering(docs, ordering, documentOrderings(docs), func(i, j int) int {
		return compareTimes(docs[j].CreatedAt, docs[i].CreatedAt)
	})
	return docs, nil
}

func (repo *documentRepository) CountDocuments(_ context.Context, filter *document.QueryFilter) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, doc := range repo.db.documents {
		if repo.matchDocument(doc, filter) {
			n++
		}
	}
	return n, nil
}

func (repo *documentRepository) GetDocument(_ context.Context, id string) (document.Document, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if doc, ok := repo.db.documents[id]; ok {
		return *doc, nil
	}
	return document.Document{}, document.ErrNotFound
}

func (repo *documentRepository) DeleteDocument(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.documents[id]; !ok {
		return document.ErrNotFound
	}
	delete(repo.db.documents, id)
	return nil
}
