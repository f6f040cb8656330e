package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humamux"
	"github.com/gorilla/mux"
)

type handler struct {
	log *slog.Logger

	batchGetter BatchGetter
}

func NewRouter(log *slog.Logger, bg BatchGetter) http.Handler {
	h := handler{
		log: log,

		batchGetter: bg,
	}

	r := mux.NewRouter()
	r.Use(RequestID(), Recovery(log), RequestLogging(log))

	r.HandleFunc("/api/v1/healthz", h.healthz).Methods(http.MethodGet)

	api := humamux.New(r, huma.DefaultConfig("batchget API", "1.0.0"))

	getOp := BatchGetDocs()
	getOp.Path = "/api/v1/batch/get"
	huma.Register(api, getOp, h.batchGet)

	selectOp := BatchSelectDocs()
	selectOp.Path = "/api/v1/batch/select"
	huma.Register(api, selectOp, h.batchSelect)

	return r
}
