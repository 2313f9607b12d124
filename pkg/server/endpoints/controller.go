package endpoints

import (
	"fmt"

	"github.com/netops-labs/enms-in-go/pkg/entity"
	"github.com/netops-labs/enms-in-go/pkg/forms"
	"github.com/netops-labs/enms-in-go/pkg/migration"
	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/server"
	"github.com/netops-labs/enms-in-go/pkg/server/pipeline"
	"github.com/netops-labs/enms-in-go/pkg/workers"
)

// RegisterControllerEndpoints registers the POST routes used by the pages.
func RegisterControllerEndpoints(s *server.Server) {
	p := s.Pipeline
	r := s.Router

	r.Handle("/get/{type}/{id}", p.Handle(handleGet(s))).Methods("POST")
	r.Handle("/get_properties/{type}/{id}", p.Handle(handleGetProperties(s))).Methods("POST")
	r.Handle("/update/{type}", p.Handle(handleUpdate(s))).Methods("POST")
	r.Handle("/delete_instance/{type}/{id}", p.Handle(handleDelete(s))).Methods("POST")
	r.Handle("/duplicate/{type}/{id}", p.Handle(handleDuplicate(s))).Methods("POST")
	r.Handle("/get_workers", p.Handle(handleWorkers(s))).Methods("POST")
	r.Handle("/run_service/{id}", p.Handle(handleRunService(s))).Methods("POST")
	r.Handle("/migration_export", p.Handle(handleMigrationExport(s))).Methods("POST")
	r.Handle("/migration_import", p.Handle(handleMigrationImport(s))).Methods("POST")
}

// fetch returns the visible entity ref of entityType when the caller may
// apply verb to it.
func fetch(s *server.Server, c *pipeline.Call, entityType string, ref interface{}, verb string) (model.Object, error) {
	obj, err := c.Session.Fetch(c.Context(), entityType, ref)
	if err != nil {
		return nil, err
	}
	if err := s.Engine.Check(c.User(), obj, verb); err != nil {
		return nil, err
	}
	return obj, nil
}

// readable keeps the objects the caller may read.
func readable(s *server.Server, c *pipeline.Call, objects []model.Object) []model.Object {
	kept := objects[:0]
	for _, obj := range objects {
		if s.Engine.Check(c.User(), obj, "read") == nil {
			kept = append(kept, obj)
		}
	}
	return kept
}

func handleGet(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		obj, err := fetch(s, c, c.Var("type"), c.Var("id"), "read")
		if err != nil {
			return nil, err
		}
		dict, err := s.Manager.ToDict(c.Context(), c.Session, obj, entity.DictOptions{})
		if err != nil {
			return nil, err
		}
		return pipeline.JSON(dict), nil
	}
}

func handleGetProperties(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		obj, err := fetch(s, c, c.Var("type"), c.Var("id"), "read")
		if err != nil {
			return nil, err
		}
		properties, err := s.Manager.GetProperties(c.Context(), c.Session, obj, entity.PropertyOptions{})
		if err != nil {
			return nil, err
		}
		return pipeline.JSON(properties), nil
	}
}

// handleUpdate creates or edits the entity named in the submitted values.
func handleUpdate(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		ctx := c.Context()
		values, err := readValues(c.Request)
		if err != nil {
			return nil, err
		}
		if values, err = validated(s, values); err != nil {
			return nil, err
		}
		obj, err := c.Session.Factory(ctx, c.Var("type"), values, entity.UpdateOptions{})
		if err != nil {
			recordChange(s, c, "update", stub(c.Var("type"), values), err)
			return nil, err
		}
		recordChange(s, c, "update", obj, nil)
		dict, err := s.Manager.ToDict(ctx, c.Session, obj, entity.DictOptions{RelationNamesOnly: true})
		if err != nil {
			return nil, err
		}
		return pipeline.JSON(dict), nil
	}
}

func handleDelete(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		return deleteInstance(s, c, c.Var("id"))
	}
}

// deleteInstance removes an entity the caller may edit.
func deleteInstance(s *server.Server, c *pipeline.Call, ref string) (pipeline.Result, error) {
	ctx := c.Context()
	obj, err := c.Session.Fetch(ctx, c.Var("type"), ref)
	if err != nil {
		return nil, err
	}
	if err := s.Engine.Check(c.User(), obj, "edit"); err != nil {
		recordChange(s, c, "delete", obj, err)
		return nil, err
	}
	if err := c.Session.Delete(ctx, obj); err != nil {
		return nil, err
	}
	recordChange(s, c, "delete", obj, nil)
	return pipeline.JSON(map[string]string{"name": obj.GetBase().Name}), nil
}

// handleDuplicate copies an entity under the submitted name.
func handleDuplicate(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		ctx := c.Context()
		obj, err := fetch(s, c, c.Var("type"), c.Var("id"), "read")
		if err != nil {
			return nil, err
		}
		overrides, err := readValues(c.Request)
		if err != nil {
			return nil, err
		}
		if overrides, err = validated(s, overrides); err != nil {
			return nil, err
		}
		if name, _ := overrides["name"].(string); name == "" {
			return nil, &forms.ValidationError{
				Form:   "duplicate",
				Errors: map[string][]string{"name": {forms.RequiredMessage}},
			}
		}
		clone, err := s.Manager.Duplicate(ctx, c.Session, obj, overrides)
		if err != nil {
			return nil, err
		}
		s.Engine.Stamp(c.User(), clone)
		if err := c.Session.Save(ctx, clone); err != nil {
			return nil, err
		}
		recordChange(s, c, "duplicate", clone, nil)
		dict, err := s.Manager.ToDict(ctx, c.Session, clone, entity.DictOptions{RelationNamesOnly: true})
		if err != nil {
			return nil, err
		}
		return pipeline.JSON(dict), nil
	}
}

func handleWorkers(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		workers, err := s.Coordinator.Workers(c.Context())
		if err != nil {
			return nil, err
		}
		return pipeline.JSON(workers), nil
	}
}

func handleRunService(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		service, err := fetchService(s, c, c.Var("id"), "run")
		if err != nil {
			return nil, err
		}
		payload, err := readValues(c.Request)
		if err != nil {
			return nil, err
		}
		result, err := runService(s, c, service, payload)
		if err != nil {
			return nil, err
		}
		return pipeline.JSON(result), nil
	}
}

// runService validates payload against the service's parameterized form
// and hands the run to the executor.
func runService(s *server.Server, c *pipeline.Call, service *model.Service, payload map[string]interface{}) (workers.Result, error) {
	delete(payload, FormTypeField)
	if service.ParameterizedForm != "" {
		descriptor, err := forms.Parse([]byte(service.ParameterizedForm))
		if err != nil {
			return nil, fmt.Errorf("service %q has an invalid parameterized form: %w", service.Name, err)
		}
		if payload, err = s.Forms.ValidateDescriptor(service.Name, descriptor, payload); err != nil {
			return nil, err
		}
	}
	result, err := s.Executor.Run(c.Context(), workers.Job{
		Service: service,
		Payload: payload,
		User:    actorName(c),
	})
	s.Metrics.ObserveServiceRun(err == nil)
	return result, err
}

func flag(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "on" || v == "y" || v == "1"
	}
	return false
}

func handleMigrationExport(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		values, err := readValues(c.Request)
		if err != nil {
			return nil, err
		}
		name, _ := values["name"].(string)
		manifest, err := s.Migrator.Export(c.Context(), c.Session, migration.ExportOptions{
			Name:           name,
			Types:          model.StringList(values["import_export_types"]),
			IncludeSecrets: flag(values["include_secrets"]),
		})
		if err != nil {
			return nil, err
		}
		return pipeline.JSON(manifest), nil
	}
}

func handleMigrationImport(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		values, err := readValues(c.Request)
		if err != nil {
			return nil, err
		}
		name, _ := values["name"].(string)
		counts, err := s.Migrator.Import(c.Context(), c.Session, migration.ImportOptions{
			Name:          name,
			Types:         model.StringList(values["import_export_types"]),
			EmptyDatabase: flag(values["empty_database"]),
		})
		if err != nil {
			return nil, err
		}
		return pipeline.JSON(counts), nil
	}
}

// stub names an entity that could not be written, for auditing.
func stub(entityType string, values map[string]interface{}) model.Object {
	base := &model.Base{Type: entityType}
	base.Name, _ = values["name"].(string)
	return base
}
