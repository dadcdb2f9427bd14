package audit

import (
	"reflect"
	"testing"
)

func TestSanitize_RedactsSensitiveKeys(t *testing.T) {
	in := map[string]interface{}{
		"email":       "rider@example.com",
		"password":    "hunter2",
		"api_token":   "tok_123",
		"SecretValue": "s",
		"card_number": "4242424242424242",
		"cvv":         "123",
		"fare":        12.50,
	}

	out := Sanitize(in)

	for _, k := range []string{"password", "api_token", "SecretValue", "card_number", "cvv"} {
		if out[k] != RedactedValue {
			t.Errorf("key %q = %v, want %q", k, out[k], RedactedValue)
		}
	}
	if out["email"] != "rider@example.com" {
		t.Errorf("email = %v, want unchanged", out["email"])
	}
	if out["fare"] != 12.50 {
		t.Errorf("fare = %v, want unchanged", out["fare"])
	}
}

func TestSanitize_SubstringMatchIsCaseInsensitive(t *testing.T) {
	in := map[string]interface{}{
		"PasswordHash":      "$2a$12$abc",
		"STRIPE_SECRET_KEY": "sk_live_x",
		"monkey":            "should be redacted too", // contains "key"
	}

	out := Sanitize(in)

	for k := range in {
		if out[k] != RedactedValue {
			t.Errorf("key %q = %v, want %q", k, out[k], RedactedValue)
		}
	}
}

func TestSanitize_RecursesIntoNestedStructures(t *testing.T) {
	in := map[string]interface{}{
		"profile": map[string]interface{}{
			"name":     "Ada",
			"password": "pw",
		},
		"cards": []interface{}{
			map[string]interface{}{
				"card_number": "1111",
				"brand":       "visa",
			},
		},
	}

	out := Sanitize(in)

	profile := out["profile"].(map[string]interface{})
	if profile["password"] != RedactedValue {
		t.Errorf("nested password = %v, want %q", profile["password"], RedactedValue)
	}
	if profile["name"] != "Ada" {
		t.Errorf("nested name = %v, want unchanged", profile["name"])
	}

	card := out["cards"].([]interface{})[0].(map[string]interface{})
	if card["card_number"] != RedactedValue {
		t.Errorf("card_number in slice = %v, want %q", card["card_number"], RedactedValue)
	}
	if card["brand"] != "visa" {
		t.Errorf("brand = %v, want unchanged", card["brand"])
	}
}

func TestSanitize_DoesNotMutateInput(t *testing.T) {
	in := map[string]interface{}{
		"password": "pw",
		"nested": map[string]interface{}{
			"token": "t",
		},
	}
	want := map[string]interface{}{
		"password": "pw",
		"nested": map[string]interface{}{
			"token": "t",
		},
	}

	_ = Sanitize(in)

	if !reflect.DeepEqual(in, want) {
		t.Errorf("input mutated: %v", in)
	}
}

func TestSanitize_NilInput(t *testing.T) {
	if got := Sanitize(nil); got != nil {
		t.Errorf("Sanitize(nil) = %v, want nil", got)
	}
}
