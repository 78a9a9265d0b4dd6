package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/drip-mailer/app/dto"
	"github.com/amirphl/drip-mailer/config"
	"github.com/amirphl/drip-mailer/models"
	"github.com/amirphl/drip-mailer/repository"
	"github.com/amirphl/drip-mailer/utils"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// CampaignFlow handles the campaign business logic
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CampaignItem, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error)
	GetCampaign(ctx context.Context, campaignID uint) (*dto.CampaignItem, error)
	RenameCampaign(ctx context.Context, req *dto.RenameCampaignRequest, metadata *ClientMetadata) (*dto.CampaignItem, error)
	DeleteCampaign(ctx context.Context, campaignID uint, metadata *ClientMetadata) (*dto.DeleteCampaignResponse, error)
	DuplicateCampaign(ctx context.Context, campaignID uint, metadata *ClientMetadata) (*dto.DuplicateCampaignResponse, error)
	GetAnalytics(ctx context.Context, campaignID uint) (*dto.CampaignAnalyticsResponse, error)
	GetDashboard(ctx context.Context) (*dto.DashboardResponse, error)
	ExportQueue(ctx context.Context, campaignID uint) (string, []byte, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo         repository.CampaignRepository
	followupRepo         repository.CampaignFollowupRepository
	campaignProspectRepo repository.CampaignProspectRepository
	prospectRepo         repository.ProspectRepository
	queueRepo            repository.QueueItemRepository
	tx                   repository.Transactor
	zone                 *time.Location
	now                  func() time.Time
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	followupRepo repository.CampaignFollowupRepository,
	campaignProspectRepo repository.CampaignProspectRepository,
	prospectRepo repository.ProspectRepository,
	queueRepo repository.QueueItemRepository,
	tx repository.Transactor,
	schedulerConfig config.SchedulerConfig,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo:         campaignRepo,
		followupRepo:         followupRepo,
		campaignProspectRepo: campaignProspectRepo,
		prospectRepo:         prospectRepo,
		queueRepo:            queueRepo,
		tx:                   tx,
		zone:                 NewSendTimeCalculator(schedulerConfig.WindowOffset()).Zone(),
		now:                  utils.UTCNow,
	}
}

// CreateCampaign creates an inactive draft campaign
func (s *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CampaignItem, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrCampaignNameRequired
	}

	campaign := &models.Campaign{
		Name:            name,
		IsActive:        false,
		ScheduledStatus: models.ScheduleStatusDraft,
	}
	if err := s.campaignRepo.Save(ctx, campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	logrus.WithFields(metadata.LogFields()).WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"name":        campaign.Name,
	}).Info("campaign created")

	item := ToCampaignItem(campaign)
	return &item, nil
}

// ListCampaigns returns a page of campaigns, newest first, with prospect and queue counts
func (s *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (resp *dto.ListCampaignsResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("LIST_CAMPAIGNS_FAILED", "Failed to list campaigns", err)
		}
	}()

	page, limit := normalizePage(req.Page, req.PageSize)
	offset := (page - 1) * limit

	filter := models.CampaignFilter{}
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		name := strings.TrimSpace(*req.Name)
		filter.Name = &name
	}
	if req.Status != nil && *req.Status != "" {
		status := models.ScheduleStatus(*req.Status)
		if status.Valid() {
			filter.ScheduledStatus = &status
		}
	}

	total, err := s.campaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.campaignRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]dto.CampaignItem, 0, len(rows))
	for _, c := range rows {
		var item dto.CampaignItem
		item, err = s.campaignItemWithCounts(ctx, c)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return &dto.ListCampaignsResponse{
		Items:      items,
		Pagination: newPagination(total, page, limit),
	}, nil
}

func (s *CampaignFlowImpl) GetCampaign(ctx context.Context, campaignID uint) (*dto.CampaignItem, error) {
	campaign, err := getCampaign(ctx, s.campaignRepo, campaignID)
	if err != nil {
		return nil, err
	}

	item, err := s.campaignItemWithCounts(ctx, campaign)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to load campaign", err)
	}
	return &item, nil
}

func (s *CampaignFlowImpl) RenameCampaign(ctx context.Context, req *dto.RenameCampaignRequest, metadata *ClientMetadata) (*dto.CampaignItem, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrCampaignNameRequired
	}

	campaign, err := getCampaign(ctx, s.campaignRepo, req.CampaignID)
	if err != nil {
		return nil, err
	}

	if err := s.campaignRepo.Rename(ctx, campaign.ID, name); err != nil {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Failed to rename campaign", err)
	}

	logrus.WithFields(metadata.LogFields()).WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"old_name":    campaign.Name,
		"new_name":    name,
	}).Info("campaign renamed")

	campaign.Name = name
	item := ToCampaignItem(campaign)
	return &item, nil
}

// DeleteCampaign removes the campaign with its queue (any status), prospect links and follow-ups
func (s *CampaignFlowImpl) DeleteCampaign(ctx context.Context, campaignID uint, metadata *ClientMetadata) (*dto.DeleteCampaignResponse, error) {
	campaign, err := getCampaign(ctx, s.campaignRepo, campaignID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.queueRepo.DeleteByCampaign(txCtx, campaign.ID); err != nil {
			return err
		}
		if err := s.campaignProspectRepo.DeleteByCampaign(txCtx, campaign.ID); err != nil {
			return err
		}
		if err := s.followupRepo.DeleteByCampaign(txCtx, campaign.ID); err != nil {
			return err
		}
		return s.campaignRepo.Delete(txCtx, campaign.ID)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_DELETE_FAILED", "Failed to delete campaign", err)
	}

	logrus.WithFields(metadata.LogFields()).WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"status":      campaign.ScheduledStatus,
	}).Info("campaign deleted")

	return &dto.DeleteCampaignResponse{Message: "Campaign deleted successfully"}, nil
}

// DuplicateCampaign creates an inactive draft copy sharing the source's prospects; queue and follow-ups are not copied
func (s *CampaignFlowImpl) DuplicateCampaign(ctx context.Context, campaignID uint, metadata *ClientMetadata) (*dto.DuplicateCampaignResponse, error) {
	source, err := getCampaign(ctx, s.campaignRepo, campaignID)
	if err != nil {
		return nil, err
	}

	copyCampaign := &models.Campaign{
		Name:            fmt.Sprintf("%s (copy)", source.Name),
		IsActive:        false,
		ScheduledStatus: models.ScheduleStatusDraft,
	}

	var linked int64
	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.campaignRepo.Save(txCtx, copyCampaign); err != nil {
			return err
		}
		var err error
		linked, err = s.campaignProspectRepo.CopyLinks(txCtx, source.ID, copyCampaign.ID)
		return err
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_DUPLICATE_FAILED", "Failed to duplicate campaign", err)
	}

	logrus.WithFields(metadata.LogFields()).WithFields(logrus.Fields{
		"source_id":   source.ID,
		"campaign_id": copyCampaign.ID,
		"prospects":   linked,
	}).Info("campaign duplicated")

	item := ToCampaignItem(copyCampaign)
	item.ProspectCount = linked
	return &dto.DuplicateCampaignResponse{
		Campaign:      item,
		ProspectCount: linked,
	}, nil
}

// GetAnalytics breaks the queue down per round
func (s *CampaignFlowImpl) GetAnalytics(ctx context.Context, campaignID uint) (*dto.CampaignAnalyticsResponse, error) {
	campaign, err := getCampaign(ctx, s.campaignRepo, campaignID)
	if err != nil {
		return nil, err
	}

	counts, err := s.queueRepo.StatusCounts(ctx, campaign.Owner())
	if err != nil {
		return nil, NewBusinessError("QUEUE_STATS_FAILED", "Failed to count campaign emails", err)
	}

	followups, err := s.followupRepo.ListByCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("FOLLOWUP_LIST_FAILED", "Failed to list follow-ups", err)
	}

	rounds := make([]dto.RoundAnalytics, 0, len(followups))
	for _, f := range followups {
		fc, err := s.queueRepo.StatusCounts(ctx, f.Owner())
		if err != nil {
			return nil, NewBusinessError("QUEUE_STATS_FAILED", "Failed to count follow-up emails", err)
		}
		rounds = append(rounds, dto.RoundAnalytics{
			Round:           f.Round,
			FollowupID:      f.ID,
			ScheduledStatus: f.ScheduledStatus.String(),
			Stats:           ToQueueStats(fc),
		})
	}

	return &dto.CampaignAnalyticsResponse{
		CampaignID:      campaign.ID,
		ScheduledStatus: campaign.ScheduledStatus.String(),
		Campaign:        ToQueueStats(counts),
		Followups:       rounds,
	}, nil
}

// GetDashboard returns headline counters; "today" starts at midnight of the send-window zone
func (s *CampaignFlowImpl) GetDashboard(ctx context.Context) (resp *dto.DashboardResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("DASHBOARD_FAILED", "Failed to load dashboard", err)
		}
	}()

	resp = &dto.DashboardResponse{}

	if resp.Campaigns, err = s.campaignRepo.Count(ctx, models.CampaignFilter{}); err != nil {
		return nil, err
	}
	scheduled := models.ScheduleStatusScheduled
	if resp.ScheduledCampaigns, err = s.campaignRepo.Count(ctx, models.CampaignFilter{ScheduledStatus: &scheduled}); err != nil {
		return nil, err
	}
	if resp.Prospects, err = s.prospectRepo.Count(ctx, models.ProspectFilter{}); err != nil {
		return nil, err
	}
	pending := models.QueueItemStatusPending
	if resp.PendingEmails, err = s.queueRepo.Count(ctx, models.QueueItemFilter{Status: &pending}); err != nil {
		return nil, err
	}

	startOfDay := utils.StartOfDay(s.now(), s.zone)
	if resp.SentToday, err = s.queueRepo.CountSentSince(ctx, startOfDay.UTC()); err != nil {
		return nil, err
	}

	return resp, nil
}

// ExportQueue writes the campaign's queue to a workbook with one sheet per round
func (s *CampaignFlowImpl) ExportQueue(ctx context.Context, campaignID uint) (string, []byte, error) {
	campaign, err := getCampaign(ctx, s.campaignRepo, campaignID)
	if err != nil {
		return "", nil, err
	}

	followups, err := s.followupRepo.ListByCampaign(ctx, campaign.ID)
	if err != nil {
		return "", nil, NewBusinessError("FOLLOWUP_LIST_FAILED", "Failed to list follow-ups", err)
	}

	type sheet struct {
		name  string
		owner models.QueueOwner
	}
	sheets := []sheet{{name: "Campaign", owner: campaign.Owner()}}
	for _, f := range followups {
		sheets = append(sheets, sheet{name: models.FollowupName(f.Round), owner: f.Owner()})
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	header := []string{"id", "to_email", "variant", "subject", "status", "send_at", "sent_at", "error_message"}
	for i, sh := range sheets {
		if i == 0 {
			xl.SetSheetName(xl.GetSheetName(0), sh.name)
		} else if _, err := xl.NewSheet(sh.name); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to create sheet", err)
		}
		_ = xl.SetSheetRow(sh.name, "A1", &header)

		owner := sh.owner
		rows, err := s.queueRepo.ByFilter(ctx, models.QueueItemFilter{Owner: &owner}, "send_at ASC, id ASC", 0, 0)
		if err != nil {
			return "", nil, NewBusinessError("EXPORT_FETCH_FAILED", "Failed to fetch queue items", err)
		}

		for ri, r := range rows {
			sentAt := ""
			if r.SentAt != nil {
				sentAt = r.SentAt.UTC().Format(time.RFC3339)
			}
			errMsg := ""
			if r.ErrorMessage != nil {
				errMsg = *r.ErrorMessage
			}
			record := []string{
				strconv.FormatUint(uint64(r.ID), 10),
				r.ToEmail,
				r.Variant,
				r.Subject,
				string(r.Status),
				r.SendAt.UTC().Format(time.RFC3339),
				sentAt,
				errMsg,
			}
			cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
			_ = xl.SetSheetRow(sh.name, cellRef, &record)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	filename := fmt.Sprintf("campaign_%d_queue.xlsx", campaign.ID)
	return filename, buf.Bytes(), nil
}

func (s *CampaignFlowImpl) campaignItemWithCounts(ctx context.Context, c *models.Campaign) (dto.CampaignItem, error) {
	item := ToCampaignItem(c)

	prospects, err := s.campaignProspectRepo.Count(ctx, models.CampaignProspectFilter{CampaignID: &c.ID})
	if err != nil {
		return item, err
	}
	item.ProspectCount = prospects

	counts, err := s.queueRepo.StatusCounts(ctx, c.Owner())
	if err != nil {
		return item, err
	}
	stats := ToQueueStats(counts)
	item.Stats = &stats

	return item, nil
}
