package usecase

import (
	"context"
	"net/http"

	"ccmart/internal/domain/model"
	"ccmart/internal/repository"

	"go.uber.org/zap"
)

type AuditLogUsecase struct {
	repo repository.AuditLogRepository
	log  *zap.Logger
}

func NewAuditLogUsecase(repo repository.AuditLogRepository, log *zap.Logger) *AuditLogUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditLogUsecase{repo: repo, log: log}
}

type AuditLogListInput struct {
	ActorUserID  *int64
	Action       string
	ResourceType string
	ResourceID   *int64
	Limit        int
	Offset       int
}

func (u *AuditLogUsecase) List(ctx context.Context, in AuditLogListInput) ([]model.AuditLog, error) {
	if in.Limit < 0 || in.Limit > 200 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if in.Offset < 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid offset")
	}

	f := repository.AuditLogFilter{
		ActorUserID: in.ActorUserID,
		ResourceID:  in.ResourceID,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}
	if in.Action != "" {
		a := model.AuditAction(in.Action)
		f.Action = &a
	}
	if in.ResourceType != "" {
		rt := model.AuditResourceType(in.ResourceType)
		switch rt {
		case model.AuditResourceProduct, model.AuditResourceOrder, model.AuditResourceUser:
		default:
			return nil, NewHTTPError(http.StatusBadRequest, "invalid resource_type")
		}
		f.ResourceType = &rt
	}

	logs, err := u.repo.List(ctx, f)
	if err != nil {
		u.log.Error("list audit logs", zap.Error(err))
		return nil, errInternal
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return logs, nil
}
