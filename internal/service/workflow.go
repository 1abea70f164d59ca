package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"edms/internal/errs"
	"edms/internal/events"
	"edms/internal/metrics"
	"edms/internal/model"
	"edms/internal/workflow"
)

// ActionInput is one workflow command. AssigneeID optionally hands the
// document to someone else on transitions that keep the assignee.
type ActionInput struct {
	Action     string
	AssigneeID string
}

// WorkflowService applies workflow actions.
type WorkflowService interface {
	// Apply validates and applies an action under the document's row lock, so two
	// concurrent calls cannot both succeed on a state that permits only one.
	Apply(ctx context.Context, actorID, documentID string, in ActionInput) (*DocumentView, error)
}

type workflowService struct {
	Dependencies
	log *zap.Logger
}

func NewWorkflowService(deps Dependencies) WorkflowService {
	deps = deps.withDefaults()
	return &workflowService{
		Dependencies: deps,
		log:          deps.Logger.With(zap.String("service", "workflow")),
	}
}

func (s *workflowService) Apply(ctx context.Context, actorID, documentID string, in ActionInput) (*DocumentView, error) {
	action, err := workflow.ParseAction(strings.ToLower(strings.TrimSpace(in.Action)))
	if err != nil {
		s.Metrics.Transition("unknown", metrics.ResultInvalid)
		return nil, err
	}
	id, err := parseDocumentID(documentID)
	if err != nil {
		return nil, err
	}

	req := workflow.Request{Action: action, ActorID: actorID}
	if aid := strings.TrimSpace(in.AssigneeID); aid != "" {
		u, err := lookupUser(ctx, s.Users, aid, "assignee_id")
		if err != nil {
			return nil, err
		}
		ref := u.Ref()
		req.NextAssignee = &ref
	}

	var from model.Status
	doc, err := s.Documents.Mutate(ctx, id, func(d *model.Document) error {
		from = d.Status
		_, err := workflow.Apply(d, req)
		return err
	})
	if err != nil {
		s.Metrics.Transition(string(action), resultOf(err))
		return nil, mapRepoErr(err, "document")
	}
	s.Metrics.Transition(string(action), metrics.ResultApplied)
	s.invalidate(ctx, id)

	evt := events.Transitioned{
		Event:          events.TypeTransitioned,
		DocumentID:     id,
		Action:         string(action),
		From:           string(from),
		To:             string(doc.Status),
		ActorID:        actorID,
		NextAssigneeID: doc.AssignedTo.ID,
		OccurredAt:     doc.UpdatedAt,
	}
	if err := s.Events.Publish(ctx, evt); err != nil {
		s.log.Error("publish transition failed", zap.String("document_id", id), zap.Error(err))
	}
	s.log.Info("document transitioned",
		zap.String("document_id", id),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(doc.Status)),
		zap.String("actor_id", actorID),
	)

	versions, err := s.Versions.ListByDocument(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "list versions")
	}
	return newDocumentView(doc, versions, actorID), nil
}

func resultOf(err error) string {
	switch errs.KindOf(err) {
	case errs.KindForbidden:
		return metrics.ResultForbidden
	case errs.KindInvalidTransition, errs.KindValidation:
		return metrics.ResultInvalid
	}
	return metrics.ResultError
}
