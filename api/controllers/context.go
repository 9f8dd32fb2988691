package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kharido-labs/kharido-backend/api/middleware"
	pkgerrors "github.com/kharido-labs/kharido-backend/pkg/errors"
)

func buyerIDFromRequest(r *http.Request) (uuid.UUID, error) {
	return actorID(middleware.BuyerIDFromContext(r.Context()), "buyer identity required")
}

func sellerIDFromRequest(r *http.Request) (uuid.UUID, error) {
	return actorID(middleware.SellerIDFromContext(r.Context()), "seller identity required")
}

func adminIDFromRequest(r *http.Request) (uuid.UUID, error) {
	return actorID(middleware.AdminIDFromContext(r.Context()), "admin identity required")
}

func actorID(value, message string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, message)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, message)
	}
	return id, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+param)
	}
	return id, nil
}
