package tcp

import (
	"context"
	"errors"

	"frost/internal/policy/models"
	dErrors "frost/pkg/domain-errors"
)

// messageResponse is the reply of most commands.
type messageResponse struct {
	Response any `json:"response"`
}

type listResponse struct {
	Response      []string `json:"response"`
	PolicyStoreID string   `json:"policyStoreId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// rejectedResponse answers requests refused before the command ran.
type rejectedResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

func rejection(message string) rejectedResponse {
	return rejectedResponse{Error: true, Message: message}
}

func rejectionFor(err error) rejectedResponse {
	var de *dErrors.Error
	if errors.As(err, &de) && de.Code != dErrors.CodeInternal {
		return rejection(de.Message)
	}
	return rejection("Internal error.")
}

func (s *Server) addPolicy(ctx context.Context, req *Request) (any, error) {
	result, err := s.service.Publish(ctx, models.PublishRequest{
		Policy:    req.Policy,
		Owner:     req.Owner,
		DeviceID:  req.DeviceID,
		Signature: req.Signature,
	})
	if err != nil {
		return nil, err
	}
	return messageResponse{Response: result.Message}, nil
}

// getPolicy replies with the stored document itself when it is found.
func (s *Server) getPolicy(ctx context.Context, req *Request) (any, error) {
	result, err := s.service.Retrieve(ctx, req.PolicyID)
	if err != nil {
		return nil, err
	}
	if result.Status == models.StatusFound {
		return result.Payload, nil
	}
	return messageResponse{Response: result.Message}, nil
}

func (s *Server) getPolicyList(ctx context.Context, req *Request) (any, error) {
	result, err := s.service.ListIDs(ctx, req.DeviceID, req.PolicyStoreID)
	if err != nil {
		return nil, err
	}
	switch result.Status {
	case models.StatusUnchanged:
		return messageResponse{Response: models.MsgOK}, nil
	case models.StatusChanged:
		list := result.Payload.(*models.PolicyList)
		return listResponse{Response: list.List, PolicyStoreID: list.PolicyStoreID}, nil
	default:
		return errorResponse{Error: result.Message}, nil
	}
}

func (s *Server) clearPolicyList(ctx context.Context, req *Request) (any, error) {
	result, err := s.service.ClearAll(ctx, req.DeviceID)
	if err != nil {
		return nil, err
	}
	return messageResponse{Response: result.Message}, nil
}
