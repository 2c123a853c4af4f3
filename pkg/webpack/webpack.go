// Package webpack extracts page models embedded in Humble HTML pages.
//
// Humble server-renders some of its state into script blocks of the form
//
//	<script>
//	  window.models = window.models || {};
//	  window.models.userSubscriptionState = {"perksStatus": "active", ...};
//	</script>
//
// [Extract] locates the assignment for one identifier and decodes the JSON
// literal that follows it. Scraping is inherently brittle, so every failure
// is reported as WEBPACK_PARSE and callers fall back to other sources.
package webpack

import (
	"bytes"
	"encoding/json"
	"regexp"

	"github.com/matzehuels/humbleplugin/pkg/errors"
)

// Known model identifiers.
const (
	UserSubscriptionState = "userSubscriptionState"
	UserSubscriptionPlan  = "userSubscriptionPlan"
	PayEarlyOptions       = "payEarlyOptions"
	ContentChoiceOptions  = "contentChoiceOptions"
	ChoiceMarketingData   = "choiceMarketingData"
)

var identRE = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Extract returns the JSON literal assigned to window.models.<id> in html.
//
// The literal is decoded with a streaming JSON decoder, so "};" sequences
// inside string values do not end the capture early. Only the first
// assignment is considered.
func Extract(html []byte, id string) (json.RawMessage, error) {
	if !identRE.MatchString(id) {
		return nil, errors.New(errors.ErrCodeWebpackParse, "invalid webpack id %q", id)
	}
	re := regexp.MustCompile(`window\.models\.` + regexp.QuoteMeta(id) + `\s*=\s*`)
	loc := re.FindIndex(html)
	if loc == nil {
		return nil, errors.New(errors.ErrCodeWebpackParse, "webpack model %s not found", id)
	}

	dec := json.NewDecoder(bytes.NewReader(html[loc[1]:]))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeWebpackParse, err, "webpack model %s is not valid JSON", id)
	}
	return raw, nil
}

// ExtractInto decodes the model for id into v.
func ExtractInto(html []byte, id string, v any) error {
	raw, err := Extract(html, id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(errors.ErrCodeWebpackParse, err, "webpack model %s has unexpected shape", id)
	}
	return nil
}
