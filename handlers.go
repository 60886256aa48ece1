package main

import (
	"net/http"
	"strconv"
	"strings"

	"dhportal/main_backend/caseflow"
	"dhportal/main_backend/cases"
	"dhportal/main_backend/search"
)

func (s *server) createCase(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	var in caseflow.NewCase
	if !decode(w, r, &in) {
		return
	}
	c, err := s.svc.CreateCase(r.Context(), caller, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// reserved list parameters; every other query parameter is a column filter
var listParams = map[string]bool{
	"search": true, "page": true, "page_size": true,
	"include_deleted": true, "include_finished": true, "include_processing": true,
}

func (s *server) listCases(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	q := r.URL.Query()
	req := caseflow.ListRequest{
		Search:  q.Get("search"),
		Filters: map[string]string{},
		Toggles: search.Toggles{
			IncludeDeleted:    boolParam(q.Get("include_deleted")),
			IncludeFinished:   boolParam(q.Get("include_finished")),
			IncludeProcessing: boolParam(q.Get("include_processing")),
		},
	}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	for k, v := range q {
		if listParams[k] || len(v) == 0 || strings.TrimSpace(v[0]) == "" {
			continue
		}
		req.Filters[strings.ToLower(k)] = v[0]
	}

	page, err := s.svc.ListCases(r.Context(), caller, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func boolParam(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func (s *server) getCase(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	detail, err := s.svc.GetCase(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *server) advance(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	var body struct {
		Checkpoint string `json:"checkpoint"`
	}
	if !decodeOptional(w, r, &body) {
		return
	}
	c, err := s.svc.AdvanceStatus(r.Context(), caller, r.PathValue("id"), body.Checkpoint)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *server) flag(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	var body struct {
		FieldKey string `json:"field_key"`
		Message  string `json:"message"`
	}
	if !decode(w, r, &body) {
		return
	}
	corr, err := s.svc.FlagField(r.Context(), caller, r.PathValue("id"), body.FieldKey, body.Message)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, corr)
}

func (s *server) resolve(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	corr, err := s.svc.ResolveCorrection(r.Context(), caller, r.PathValue("id"), r.PathValue("field"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, corr)
}

func (s *server) returnForCompliance(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	var body struct {
		Flags []cases.StagedFlag `json:"flags"`
	}
	if !decode(w, r, &body) {
		return
	}
	list, err := s.svc.ReturnForCompliance(r.Context(), caller, r.PathValue("id"), cases.NewFlagBatch(body.Flags...))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *server) submitCorrections(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	c, err := s.svc.SubmitCorrections(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *server) softDelete(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	if err := s.svc.SoftDelete(r.Context(), caller, r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type confirmBody struct {
	Token string `json:"token"`
}

func (s *server) restore(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	var body confirmBody
	if !decode(w, r, &body) {
		return
	}
	if err := s.svc.Restore(r.Context(), caller, r.PathValue("id"), body.Token); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) purge(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	var body confirmBody
	if !decode(w, r, &body) {
		return
	}
	if err := s.svc.PermanentlyDelete(r.Context(), caller, r.PathValue("id"), body.Token); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
