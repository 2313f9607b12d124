package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"

	"github.com/netops-labs/enms-in-go/pkg/entity"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
)

var placeholder = regexp.MustCompile(`\{[a-z0-9_]+\}`)

// StepsContext holds state shared between step definitions
type StepsContext struct {
	tc *TestContext

	// suffix keeps entity names unique across scenarios sharing a database
	suffix string

	username string
	password string
	bearer   string

	response     *http.Response
	responseBody []byte
	saved        map[string]string
}

// NewStepsContext creates a new steps context
func NewStepsContext(tc *TestContext) *StepsContext {
	return &StepsContext{
		tc:     tc,
		suffix: uuid.NewString()[:8],
		saved:  map[string]string{},
	}
}

// RegisterSteps registers all step definitions
func (s *StepsContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an eNMS server is running$`, s.anENMSServerIsRunning)
	sc.Step(`^a group "([^"]*)" allowed to (GET|POST|DELETE) "([^"]*)"$`, s.aGroupAllowedTo)
	sc.Step(`^a user "([^"]*)" in group "([^"]*)"$`, s.aUserInGroup)
	sc.Step(`^an administrator "([^"]*)"$`, s.anAdministrator)
	sc.Step(`^a device "([^"]*)" with IP address "([^"]*)"$`, s.aDeviceWithIPAddress)
	sc.Step(`^a pool "([^"]*)" holding device "([^"]*)" for user "([^"]*)"$`, s.aPoolHoldingDeviceForUser)
	sc.Step(`^a service "([^"]*)" targeting device "([^"]*)"$`, s.aServiceTargetingDevice)
	sc.Step(`^a service "([^"]*)" targeting device "([^"]*)" owned by "([^"]*)"$`, s.aServiceTargetingDeviceOwnedBy)

	sc.Step(`^I am "([^"]*)"$`, s.iAm)
	sc.Step(`^I use my bearer token$`, s.iUseMyBearerToken)
	sc.Step(`^I (GET|POST|DELETE) "([^"]*)"$`, s.iRequest)
	sc.Step(`^I (POST) "([^"]*)" with:$`, s.iRequestWith)

	sc.Step(`^the response status should be (\d+)$`, s.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, s.theResponseFieldShouldBe)
	sc.Step(`^the response should list "([^"]*)"$`, s.theResponseShouldList)
	sc.Step(`^the response should not list "([^"]*)"$`, s.theResponseShouldNotList)
	sc.Step(`^I remember the response field "([^"]*)"$`, s.iRememberTheResponseField)
	sc.Step(`^the changelog should mention "([^"]*)"$`, s.theChangelogShouldMention)
}

// name makes a fixture name unique to the scenario.
func (s *StepsContext) name(base string) string {
	return base + "-" + s.suffix
}

// expand replaces {name} placeholders with scenario names and {saved:key}
// with remembered fields.
func (s *StepsContext) expand(text string) string {
	for key, value := range s.saved {
		text = strings.ReplaceAll(text, "{saved:"+key+"}", value)
	}
	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		return s.name(match[1 : len(match)-1])
	})
}

// expandPath is expand with remembered fields escaped as path segments.
func (s *StepsContext) expandPath(path string) string {
	for key, value := range s.saved {
		path = strings.ReplaceAll(path, "{saved:"+key+"}", url.PathEscape(value))
	}
	return s.expand(path)
}

func (s *StepsContext) seed(fn func(ctx context.Context, session store.Session) error) error {
	ctx := context.Background()
	return s.tc.Admin.Store.Transaction(ctx, nil, func(session store.Session) error {
		return fn(ctx, session)
	})
}

func (s *StepsContext) factory(entityType string, fields map[string]interface{}) error {
	return s.seed(func(ctx context.Context, session store.Session) error {
		_, err := session.Factory(ctx, entityType, fields, entity.UpdateOptions{})
		return err
	})
}

func (s *StepsContext) anENMSServerIsRunning() error {
	return waitForServer(s.tc.ServerURL, 5*time.Second)
}

func (s *StepsContext) aGroupAllowedTo(group, method, endpoint string) error {
	return s.factory("group", map[string]interface{}{
		"name": s.name(group),
		"endpoints": map[string]interface{}{
			strings.ToLower(method): []interface{}{endpoint},
		},
	})
}

func (s *StepsContext) aUserInGroup(user, group string) error {
	return s.factory("user", map[string]interface{}{
		"name":     s.name(user),
		"password": user,
		"groups":   []interface{}{s.name(group)},
	})
}

func (s *StepsContext) anAdministrator(user string) error {
	return s.factory("user", map[string]interface{}{
		"name":     s.name(user),
		"password": user,
		"is_admin": true,
	})
}

func (s *StepsContext) aDeviceWithIPAddress(device, ip string) error {
	return s.factory("device", map[string]interface{}{
		"name":       s.name(device),
		"ip_address": ip,
	})
}

func (s *StepsContext) aPoolHoldingDeviceForUser(pool, device, user string) error {
	return s.factory("pool", map[string]interface{}{
		"name":    s.name(pool),
		"devices": []interface{}{s.name(device)},
		"users":   []interface{}{s.name(user)},
	})
}

func (s *StepsContext) aServiceTargetingDevice(service, device string) error {
	return s.factory("service", map[string]interface{}{
		"name":    s.name(service),
		"devices": []interface{}{s.name(device)},
	})
}

// aServiceTargetingDeviceOwnedBy creates the service as the user, who
// becomes its owner.
func (s *StepsContext) aServiceTargetingDeviceOwnedBy(service, device, user string) error {
	return s.seed(func(ctx context.Context, session store.Session) error {
		owner, err := session.FetchUser(ctx, s.name(user))
		if err != nil {
			return err
		}
		_, err = session.WithActor(owner).Factory(ctx, "service", map[string]interface{}{
			"name":    s.name(service),
			"devices": []interface{}{s.name(device)},
		}, entity.UpdateOptions{})
		return err
	})
}

// iAm authenticates the following requests with the user's password,
// which fixtures set to the user's base name.
func (s *StepsContext) iAm(user string) error {
	s.username, s.password, s.bearer = s.name(user), user, ""
	return nil
}

func (s *StepsContext) iUseMyBearerToken() error {
	if err := s.iRequest(http.MethodGet, "/rest/token"); err != nil {
		return err
	}
	if s.response.StatusCode != http.StatusOK {
		return fmt.Errorf("token request returned %d: %s", s.response.StatusCode, s.responseBody)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(s.responseBody, &body); err != nil {
		return err
	}
	s.bearer = body.Token
	return nil
}

func (s *StepsContext) iRequest(method, path string) error {
	return s.do(method, path, nil)
}

func (s *StepsContext) iRequestWith(method, path string, body *godog.DocString) error {
	return s.do(method, path, strings.NewReader(s.expand(body.Content)))
}

func (s *StepsContext) do(method, path string, body io.Reader) error {
	req, err := http.NewRequest(method, s.tc.ServerURL+s.expandPath(path), body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case s.bearer != "":
		req.Header.Set("Authorization", "Bearer "+s.bearer)
	case s.username != "":
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.tc.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	s.response = resp
	s.responseBody, err = io.ReadAll(resp.Body)
	return err
}

func (s *StepsContext) theResponseStatusShouldBe(status int) error {
	if s.response == nil {
		return fmt.Errorf("no request was sent")
	}
	if s.response.StatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, s.response.StatusCode, s.responseBody)
	}
	return nil
}

func (s *StepsContext) field(key string) (string, error) {
	var body map[string]interface{}
	if err := json.Unmarshal(s.responseBody, &body); err != nil {
		return "", fmt.Errorf("response is not a JSON object: %s", s.responseBody)
	}
	value, ok := body[key]
	if !ok {
		return "", fmt.Errorf("response has no field %q: %s", key, s.responseBody)
	}
	return fmt.Sprint(value), nil
}

func (s *StepsContext) theResponseFieldShouldBe(key, expected string) error {
	actual, err := s.field(key)
	if err != nil {
		return err
	}
	if expected = s.expand(expected); actual != expected {
		return fmt.Errorf("expected %s to be %q, got %q", key, expected, actual)
	}
	return nil
}

func (s *StepsContext) listed(name string) (bool, error) {
	var items []map[string]interface{}
	if err := json.Unmarshal(s.responseBody, &items); err != nil {
		return false, fmt.Errorf("response is not a JSON list: %s", s.responseBody)
	}
	for _, item := range items {
		if item["name"] == s.expand(name) {
			return true, nil
		}
	}
	return false, nil
}

func (s *StepsContext) theResponseShouldList(name string) error {
	found, err := s.listed(name)
	if err == nil && !found {
		err = fmt.Errorf("%s not listed in %s", s.expand(name), s.responseBody)
	}
	return err
}

func (s *StepsContext) theResponseShouldNotList(name string) error {
	found, err := s.listed(name)
	if err == nil && found {
		err = fmt.Errorf("%s unexpectedly listed", s.expand(name))
	}
	return err
}

func (s *StepsContext) iRememberTheResponseField(key string) error {
	value, err := s.field(key)
	if err != nil {
		return err
	}
	s.saved[key] = value
	return nil
}

func (s *StepsContext) theChangelogShouldMention(text string) error {
	text = s.expand(text)
	var count int64
	err := s.tc.Admin.DB.Table("changelogs").Where("content LIKE ?", "%"+text+"%").Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		var recent []string
		s.tc.Admin.DB.Table("changelogs").Order("id desc").Limit(5).Pluck("content", &recent)
		return fmt.Errorf("no changelog entry mentions %q; latest: %s", text, strings.Join(recent, " | "))
	}
	return nil
}
