package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/drip-mailer/app/dto"
	"github.com/amirphl/drip-mailer/models"
	"github.com/amirphl/drip-mailer/repository"
	"github.com/sirupsen/logrus"
)

// ProspectFlow manages the shared contact list and its links to campaigns
type ProspectFlow interface {
	ImportProspects(ctx context.Context, req *dto.ImportProspectsRequest, metadata *ClientMetadata) (*dto.ImportProspectsResponse, error)
	ListProspects(ctx context.Context, req *dto.ListProspectsRequest) (*dto.ListProspectsResponse, error)
	DeleteProspect(ctx context.Context, prospectID uint, metadata *ClientMetadata) (*dto.DeleteProspectResponse, error)
	LinkProspects(ctx context.Context, req *dto.LinkProspectsRequest, metadata *ClientMetadata) (*dto.LinkProspectsResponse, error)
	UnlinkProspect(ctx context.Context, campaignID, prospectID uint, metadata *ClientMetadata) error
}

// ProspectFlowImpl implements ProspectFlow
type ProspectFlowImpl struct {
	campaignRepo         repository.CampaignRepository
	prospectRepo         repository.ProspectRepository
	campaignProspectRepo repository.CampaignProspectRepository
	tx                   repository.Transactor
}

func NewProspectFlow(
	campaignRepo repository.CampaignRepository,
	prospectRepo repository.ProspectRepository,
	campaignProspectRepo repository.CampaignProspectRepository,
	tx repository.Transactor,
) ProspectFlow {
	return &ProspectFlowImpl{
		campaignRepo:         campaignRepo,
		prospectRepo:         prospectRepo,
		campaignProspectRepo: campaignProspectRepo,
		tx:                   tx,
	}
}

// ImportProspects upserts rows by lower-cased email. Blank, malformed and repeated
// addresses are skipped. With a campaign id, every imported prospect is linked to it.
func (p *ProspectFlowImpl) ImportProspects(ctx context.Context, req *dto.ImportProspectsRequest, metadata *ClientMetadata) (*dto.ImportProspectsResponse, error) {
	if len(req.Prospects) == 0 {
		return nil, ErrNoProspectsProvided
	}
	if req.CampaignID != nil {
		if _, err := getCampaign(ctx, p.campaignRepo, *req.CampaignID); err != nil {
			return nil, err
		}
	}

	rows, skipped := dedupeProspects(req.Prospects)
	resp := &dto.ImportProspectsResponse{Imported: len(rows), Skipped: skipped}
	if len(rows) == 0 {
		return resp, nil
	}

	emails := make([]string, 0, len(rows))
	for _, row := range rows {
		emails = append(emails, row.Email)
	}

	err := p.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := p.prospectRepo.UpsertByEmail(txCtx, rows); err != nil {
			return err
		}
		if req.CampaignID == nil {
			return nil
		}

		stored, err := p.prospectRepo.ByEmails(txCtx, emails)
		if err != nil {
			return err
		}
		// links follow the import order, which drives variant assignment
		idByEmail := make(map[string]uint, len(stored))
		for _, s := range stored {
			idByEmail[s.Email] = s.ID
		}
		ids := make([]uint, 0, len(rows))
		for _, row := range rows {
			if id, ok := idByEmail[row.Email]; ok {
				ids = append(ids, id)
			}
		}
		resp.Linked, err = p.campaignProspectRepo.LinkProspects(txCtx, *req.CampaignID, ids)
		return err
	})
	if err != nil {
		return nil, NewBusinessError("PROSPECT_IMPORT_FAILED", "Failed to import prospects", err)
	}

	logrus.WithFields(metadata.LogFields()).WithFields(logrus.Fields{
		"imported": resp.Imported,
		"skipped":  resp.Skipped,
		"linked":   resp.Linked,
	}).Info("prospects imported")

	return resp, nil
}

func dedupeProspects(in []dto.ProspectInput) ([]*models.Prospect, int) {
	out := make([]*models.Prospect, 0, len(in))
	seen := make(map[string]bool, len(in))
	skipped := 0

	for _, row := range in {
		email := models.NormalizeEmail(row.Email)
		if !looksLikeEmail(email) || seen[email] {
			skipped++
			continue
		}
		seen[email] = true
		out = append(out, &models.Prospect{
			Email:        email,
			FirstName:    trimmedOrNil(row.FirstName),
			BusinessName: trimmedOrNil(row.BusinessName),
			Company:      trimmedOrNil(row.Company),
			City:         trimmedOrNil(row.City),
			State:        trimmedOrNil(row.State),
			Phone:        trimmedOrNil(row.Phone),
			OverallScore: row.OverallScore,
			IsSafeToSend: row.IsSafeToSend,
		})
	}

	return out, skipped
}

// looksLikeEmail is a last-line sanity check; the request validator does the strict parse
func looksLikeEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// ListProspects pages through prospects; with a campaign id only linked ones are returned, with their follow-up flag
func (p *ProspectFlowImpl) ListProspects(ctx context.Context, req *dto.ListProspectsRequest) (resp *dto.ListProspectsResponse, err error) {
	if req.CampaignID != nil {
		if _, err := getCampaign(ctx, p.campaignRepo, *req.CampaignID); err != nil {
			return nil, err
		}
	}

	defer func() {
		if err != nil {
			err = NewBusinessError("LIST_PROSPECTS_FAILED", "Failed to list prospects", err)
		}
	}()

	page, limit := normalizePage(req.Page, req.PageSize)

	filter := models.ProspectFilter{CampaignID: req.CampaignID}
	if req.Search != nil && strings.TrimSpace(*req.Search) != "" {
		search := strings.TrimSpace(*req.Search)
		filter.Search = &search
	}

	total, err := p.prospectRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows, err := p.prospectRepo.ByFilter(ctx, filter, "prospects.created_at DESC, prospects.id DESC", limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ProspectItem, 0, len(rows))
	for _, row := range rows {
		var link *models.CampaignProspect
		if req.CampaignID != nil {
			link, err = p.campaignProspectRepo.ByCampaignAndProspect(ctx, *req.CampaignID, row.ID)
			if err != nil {
				return nil, err
			}
		}
		items = append(items, ToProspectItem(row, link))
	}

	return &dto.ListProspectsResponse{
		Items:      items,
		Pagination: newPagination(total, page, limit),
	}, nil
}

// DeleteProspect removes the prospect and its campaign links; already queued emails stay
func (p *ProspectFlowImpl) DeleteProspect(ctx context.Context, prospectID uint, metadata *ClientMetadata) (*dto.DeleteProspectResponse, error) {
	prospect, err := p.prospectRepo.ByID(ctx, prospectID)
	if err != nil {
		return nil, NewBusinessError("PROSPECT_LOOKUP_FAILED", "Failed to lookup prospect", err)
	}
	if prospect == nil {
		return nil, ErrProspectNotFound
	}

	err = p.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := p.campaignProspectRepo.DeleteByProspect(txCtx, prospect.ID); err != nil {
			return err
		}
		return p.prospectRepo.Delete(txCtx, prospect.ID)
	})
	if err != nil {
		return nil, NewBusinessError("PROSPECT_DELETE_FAILED", "Failed to delete prospect", err)
	}

	logrus.WithFields(metadata.LogFields()).WithField("prospect_id", prospect.ID).Info("prospect deleted")

	return &dto.DeleteProspectResponse{Message: "Prospect deleted successfully"}, nil
}

// LinkProspects attaches existing prospects to a campaign; links that already exist are left alone
func (p *ProspectFlowImpl) LinkProspects(ctx context.Context, req *dto.LinkProspectsRequest, metadata *ClientMetadata) (*dto.LinkProspectsResponse, error) {
	if len(req.ProspectIDs) == 0 {
		return nil, ErrNoProspectsProvided
	}
	if _, err := getCampaign(ctx, p.campaignRepo, req.CampaignID); err != nil {
		return nil, err
	}

	linked, err := p.campaignProspectRepo.LinkProspects(ctx, req.CampaignID, req.ProspectIDs)
	if err != nil {
		return nil, NewBusinessError("PROSPECT_LINK_FAILED", "Failed to link prospects", err)
	}

	logrus.WithFields(metadata.LogFields()).WithFields(logrus.Fields{
		"campaign_id": req.CampaignID,
		"requested":   len(req.ProspectIDs),
		"linked":      linked,
	}).Info("prospects linked")

	return &dto.LinkProspectsResponse{Linked: linked}, nil
}

func (p *ProspectFlowImpl) UnlinkProspect(ctx context.Context, campaignID, prospectID uint, metadata *ClientMetadata) error {
	if _, err := getCampaign(ctx, p.campaignRepo, campaignID); err != nil {
		return err
	}

	link, err := p.campaignProspectRepo.ByCampaignAndProspect(ctx, campaignID, prospectID)
	if err != nil {
		return NewBusinessError("PROSPECT_LOOKUP_FAILED", "Failed to lookup campaign prospect", err)
	}
	if link == nil {
		return ErrCampaignProspectNotFound
	}

	if err := p.campaignProspectRepo.Unlink(ctx, campaignID, prospectID); err != nil {
		return NewBusinessError("PROSPECT_UNLINK_FAILED", "Failed to unlink prospect", err)
	}

	logrus.WithFields(metadata.LogFields()).WithFields(logrus.Fields{
		"campaign_id": campaignID,
		"prospect_id": prospectID,
	}).Info("prospect unlinked")

	return nil
}
