package business

import (
	"context"
	"fmt"
	"strconv"
)

// GetSignRecordsForUser assembles the owner's per (file, request) summaries.
// Rows come back flat from the projection query and are grouped here; a
// request whose status rows were all removed still appears with no signees.
func (s *esignService) GetSignRecordsForUser(ctx context.Context, ownerID string) ([]*SignRecord, error) {

	if ownerID == "" {
		return nil, ErrorEmptyValueSupplied
	}

	rows, err := s.signatures.RecordsForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string]*SignRecord, len(rows))
	order := make([]string, 0, len(rows))

	for _, row := range rows {
		key := fmt.Sprintf("%s-%d", row.FileID, row.RequestID)

		record, ok := grouped[key]
		if !ok {
			record = &SignRecord{
				FileID:      row.FileID,
				FileName:    row.FileName,
				FileURL:     row.FileKey,
				RequestID:   row.RequestID,
				Status:      row.RequestStatus,
				RequestedAt: row.RequestedAt,
				Signees:     []*Signee{},
			}
			grouped[key] = record
			order = append(order, key)
		}

		if row.SigneeID == nil {
			continue
		}

		signee := &Signee{
			ID:       strconv.FormatUint(*row.SigneeID, 10),
			SignedAt: row.SignedAt,
		}
		if row.SigneeEmail != nil {
			signee.Email = *row.SigneeEmail
		}
		if row.SigneeSignID != nil {
			signee.SignID = *row.SigneeSignID
		}
		if row.SigneeStatus != nil {
			signee.Status = *row.SigneeStatus
		}
		if record.SignedAt == nil && row.SignedAt != nil {
			record.SignedAt = row.SignedAt
		}

		record.Signees = append(record.Signees, signee)
	}

	records := make([]*SignRecord, 0, len(order))
	for _, key := range order {
		records = append(records, grouped[key])
	}

	return records, nil
}
