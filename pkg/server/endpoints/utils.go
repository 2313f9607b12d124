package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/netops-labs/enms-in-go/pkg/audit"
	"github.com/netops-labs/enms-in-go/pkg/forms"
	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/server"
	"github.com/netops-labs/enms-in-go/pkg/server/pipeline"
)

// FormTypeField names the declarative form a submission follows.
const FormTypeField = "form_type"

// readValues decodes a JSON object body, or a URL encoded or multipart
// form where repeated keys become lists.
func readValues(r *http.Request) (map[string]interface{}, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		values := map[string]interface{}{}
		decoder := json.NewDecoder(r.Body)
		decoder.UseNumber()
		if err := decoder.Decode(&values); err != nil && !errors.Is(err, io.EOF) {
			return nil, &forms.ValidationError{
				Form:   "request",
				Errors: map[string][]string{"body": {fmt.Sprintf("invalid JSON: %v", err)}},
			}
		}
		return normalize(values), nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, &forms.ValidationError{
			Form:   "request",
			Errors: map[string][]string{"body": {err.Error()}},
		}
	}
	values := make(map[string]interface{}, len(r.PostForm))
	for key, list := range r.PostForm {
		key = strings.TrimSuffix(key, "[]")
		if len(list) == 1 {
			values[key] = list[0]
			continue
		}
		items := make([]interface{}, len(list))
		for i, item := range list {
			items[i] = item
		}
		values[key] = items
	}
	return values, nil
}

// normalize turns JSON numbers into int64 or float64.
func normalize(value map[string]interface{}) map[string]interface{} {
	for k, v := range value {
		value[k] = normalizeValue(v)
	}
	return value
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]interface{}:
		return normalize(t)
	case []interface{}:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	}
	return v
}

// validated checks values against the form named by form_type, when
// there is one. The form_type key is dropped from the result.
func validated(s *server.Server, values map[string]interface{}) (map[string]interface{}, error) {
	formType, _ := values[FormTypeField].(string)
	delete(values, FormTypeField)
	if formType == "" {
		return values, nil
	}
	return s.Forms.Validate(formType, values)
}

func actorName(c *pipeline.Call) string {
	if user := c.User(); user != nil {
		return user.Name
	}
	return ""
}

// recordChange audits a write. Successful writes are reported once the
// request commits, refused ones whatever the outcome.
func recordChange(s *server.Server, c *pipeline.Call, operation string, obj model.Object, err error) {
	event := audit.ChangeEvent{
		User:      actorName(c),
		Operation: operation,
		Success:   err == nil,
	}
	if obj != nil {
		event.Type = obj.GetBase().Type
		event.Name = obj.GetBase().Name
	}
	if err != nil {
		event.Reason = err.Error()
		s.Audit.Log(c.Context(), event)
		return
	}
	c.OnCommit(func(ctx context.Context) {
		s.Audit.Log(ctx, event)
	})
}

// safeRedirect keeps next_url on this site.
func safeRedirect(next, fallback string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}
