package pipeline

import (
	"encoding/json"
	"net/http"

	"github.com/netops-labs/enms-in-go/pkg/render"
)

// Result is what a handler produces on success. It is written only after
// the request transaction commits.
type Result interface {
	write(w http.ResponseWriter, r *http.Request, renderer render.Renderer, user string) error
}

type jsonResult struct {
	value interface{}
}

// JSON answers with value encoded as JSON.
func JSON(value interface{}) Result {
	return jsonResult{value: value}
}

func (j jsonResult) write(w http.ResponseWriter, _ *http.Request, _ render.Renderer, _ string) error {
	return writeJSON(w, http.StatusOK, j.value)
}

type pageResult struct {
	name  string
	title string
	data  interface{}
}

// Page answers with the named template.
func Page(name, title string, data interface{}) Result {
	return pageResult{name: name, title: title, data: data}
}

func (p pageResult) write(w http.ResponseWriter, _ *http.Request, renderer render.Renderer, user string) error {
	return renderer.Render(w, http.StatusOK, p.name, render.Page{Title: p.title, User: user, Data: p.data})
}

type redirectResult struct {
	location string
}

// Redirect sends the browser to location.
func Redirect(location string) Result {
	return redirectResult{location: location}
}

func (rr redirectResult) write(w http.ResponseWriter, r *http.Request, _ render.Renderer, _ string) error {
	http.Redirect(w, r, rr.location, http.StatusFound)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(value)
}
