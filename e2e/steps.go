package e2e

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc func() *TestContext) {
	ctx.Step(`^the gatehouse is running$`, func() error { return tc().gatehouseIsRunning() })

	// Contact form
	ctx.Step(`^I submit a valid contact form from "([^"]*)" (\d+) times$`, func(ip string, n int) error {
		return tc().submitContactTimes(ip, n)
	})
	ctx.Step(`^I submit a valid contact form from "([^"]*)"$`, func(ip string) error {
		return tc().submitContactTimes(ip, 1)
	})
	ctx.Step(`^I submit a valid contact form from "([^"]*)" with origin "([^"]*)"$`, func(ip, origin string) error {
		return tc().submitContact(ip, validContact(), map[string]string{"Origin": origin})
	})
	ctx.Step(`^I submit a contact form with subject "([^"]*)" from "([^"]*)"$`, func(subject, ip string) error {
		form := validContact()
		form["subject"] = subject
		return tc().submitContact(ip, form, nil)
	})

	// Sign-in
	ctx.Step(`^I sign in with email "([^"]*)" and password "([^"]*)"$`, func(email, password string) error {
		return tc().signIn("/api/auth/signin/credentials", email, password, 1)
	})
	ctx.Step(`^I sign in with email "([^"]*)" and password "([^"]*)" (\d+) times$`, func(email, password string, n int) error {
		return tc().signIn("/api/auth/signin/credentials", email, password, n)
	})
	ctx.Step(`^I log in with email "([^"]*)" and password "([^"]*)"$`, func(email, password string) error {
		return tc().signIn("/api/auth/login", email, password, 1)
	})
	ctx.Step(`^I POST to "([^"]*)"$`, func(path string) error {
		return tc().Do(http.MethodPost, path, map[string]string{}, nil)
	})

	// Requests
	ctx.Step(`^I GET "([^"]*)"$`, func(path string) error {
		return tc().Do(http.MethodGet, path, nil, nil)
	})

	// Assertions
	ctx.Step(`^the response status should be (\d+)$`, func(status int) error {
		return tc().responseStatusShouldBe(status)
	})
	ctx.Step(`^every response status should be (\d+)$`, func(status int) error {
		return tc().everyStatusShouldBe(status)
	})
	ctx.Step(`^the response should contain "([^"]*)"$`, func(text string) error {
		return tc().responseShouldContain(text)
	})
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, func(field, expected string) error {
		return tc().responseFieldShouldEqual(field, expected)
	})
	ctx.Step(`^the response should not carry a user$`, func() error {
		return tc().responseShouldNotCarryUser()
	})
	ctx.Step(`^the response header "([^"]*)" should be set$`, func(header string) error {
		return tc().responseHeaderShouldBeSet(header)
	})
}

func validContact() map[string]string {
	return map[string]string{
		"name":    "Ada Lovelace",
		"email":   "ada@example.com",
		"subject": "Partnership enquiry",
		"message": "We would like to talk about analytical engines.",
	}
}

func (tc *TestContext) gatehouseIsRunning() error {
	if err := tc.Do(http.MethodGet, "/health/live", nil, nil); err != nil {
		return err
	}
	tc.Statuses = nil
	return tc.responseStatusShouldBe(http.StatusOK)
}

func (tc *TestContext) submitContact(ip string, form map[string]string, headers map[string]string) error {
	h := map[string]string{"X-Forwarded-For": ip}
	for k, v := range headers {
		h[k] = v
	}
	return tc.Do(http.MethodPost, "/api/contact", form, h)
}

func (tc *TestContext) submitContactTimes(ip string, n int) error {
	tc.Statuses = nil
	for range n {
		if err := tc.submitContact(ip, validContact(), nil); err != nil {
			return err
		}
	}
	return nil
}

func (tc *TestContext) signIn(path, email, password string, n int) error {
	tc.Statuses = nil
	body := map[string]string{"email": email, "password": password}
	for range n {
		if err := tc.Do(http.MethodPost, path, body, map[string]string{"X-Forwarded-For": "192.0.2.10"}); err != nil {
			return err
		}
	}
	return nil
}

func (tc *TestContext) responseStatusShouldBe(expected int) error {
	if tc.LastResponse == nil {
		return fmt.Errorf("no request has been made")
	}
	if tc.LastResponse.StatusCode != expected {
		return fmt.Errorf("expected status %d, got %d", expected, tc.LastResponse.StatusCode)
	}
	return nil
}

func (tc *TestContext) everyStatusShouldBe(expected int) error {
	if len(tc.Statuses) == 0 {
		return fmt.Errorf("no request has been made")
	}
	for i, status := range tc.Statuses {
		if status != expected {
			return fmt.Errorf("request %d: expected status %d, got %d", i+1, expected, status)
		}
	}
	return nil
}

func (tc *TestContext) responseShouldContain(text string) error {
	if !strings.Contains(string(tc.LastResponseBody), text) {
		return fmt.Errorf("response does not contain %q: %s", text, tc.LastResponseBody)
	}
	return nil
}

func (tc *TestContext) responseFieldShouldEqual(field, expected string) error {
	value, err := tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(value) != expected {
		return fmt.Errorf("expected %s=%q, got %q", field, expected, fmt.Sprint(value))
	}
	return nil
}

func (tc *TestContext) responseHeaderShouldBeSet(header string) error {
	if tc.LastResponse.Header.Get(header) == "" {
		return fmt.Errorf("response header %q is not set", header)
	}
	return nil
}

func (tc *TestContext) responseShouldNotCarryUser() error {
	if _, err := tc.GetResponseField("user"); err == nil {
		return fmt.Errorf("expected no user in response: %s", tc.LastResponseBody)
	}
	return nil
}
