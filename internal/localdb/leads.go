package localdb

import (
	"clarity/internal/models"
	"clarity/internal/storage"
	"context"

	json "github.com/goccy/go-json"
)

// LoadRecentLeads returns the cached recent leads newest first. An empty
// institutionID returns every cached lead.
func (db *LocalDB) LoadRecentLeads(ctx context.Context, institutionID string) ([]models.LeadRecord, error) {
	var (
		recs []storage.Record
		err  error
	)
	if institutionID == "" {
		recs, err = db.kvs.GetAll(ctx, storage.TableStudents)
	} else {
		recs, err = db.kvs.GetAllByIndex(ctx, storage.TableStudents, storage.IndexByInstitution, institutionID)
	}
	if err != nil {
		return nil, err
	}
	leads, err := decodeLeads(recs)
	if err != nil {
		return nil, err
	}
	models.SortLeadsDesc(leads)
	return leads, nil
}

// LatestLeadsUpdate returns the LastUpdated of the recent list, 0 when empty.
func LatestLeadsUpdate(leads []models.LeadRecord) int64 {
	var latest int64
	for _, l := range leads {
		latest = max(latest, l.LastUpdated)
	}
	return latest
}

func decodeLeads(recs []storage.Record) ([]models.LeadRecord, error) {
	leads := make([]models.LeadRecord, 0, len(recs))
	for _, rec := range recs {
		lead, err := decode[models.LeadRecord](rec.Value)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, nil
}

// ReplaceRecentWithTopN clears the table and stores the n newest of records,
// all in one transaction.
func (db *LocalDB) ReplaceRecentWithTopN(ctx context.Context, records []models.LeadRecord, n int) ([]models.LeadRecord, error) {
	top := models.TopLeads(records, n)
	err := db.kvs.Update(ctx, func(tx storage.Tx) error {
		return db.rewriteLeads(tx, top)
	})
	if err != nil {
		return nil, err
	}
	return top, nil
}

// PrependAndTrim merges newRecords into the stored list, keeps the n newest and
// rewrites the table. Readers see either the old or the new list, never a mix.
func (db *LocalDB) PrependAndTrim(ctx context.Context, newRecords []models.LeadRecord, n int) ([]models.LeadRecord, error) {
	var stored []models.LeadRecord
	err := db.kvs.Update(ctx, func(tx storage.Tx) error {
		recs, err := tx.All(storage.TableStudents)
		if err != nil {
			return err
		}
		existing, err := decodeLeads(recs)
		if err != nil {
			return err
		}
		stored = models.MergeLeads(existing, newRecords, n)
		return db.rewriteLeads(tx, stored)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (db *LocalDB) rewriteLeads(tx storage.Tx, leads []models.LeadRecord) error {
	if err := tx.ClearTable(storage.TableStudents); err != nil {
		return err
	}
	now := models.NowMs(db.now())
	for i := range leads {
		id, err := tx.NextID(storage.TableStudents)
		if err != nil {
			return err
		}
		leads[i].LocalID = id
		leads[i].LastUpdated = now
		raw, err := json.Marshal(leads[i])
		if err != nil {
			return err
		}
		if _, err := tx.Put(storage.TableStudents, storage.FormatKey(id), raw); err != nil {
			return err
		}
	}
	return nil
}
