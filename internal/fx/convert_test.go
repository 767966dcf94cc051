package fx

import "testing"

func TestConvertIdentity(t *testing.T) {
	c := NewConverter(nil, nil)
	got, ok := c.Convert(123.45, "USD", "USD")
	if !ok || got != 123.45 {
		t.Fatalf("identity conversion: got %v ok=%v", got, ok)
	}
	got, ok = c.Convert(10, "usd", " USD ")
	if !ok || got != 10 {
		t.Fatalf("case/space normalization: got %v ok=%v", got, ok)
	}
}

func TestConvertDirectRate(t *testing.T) {
	c := NewConverter(RateTable{"USD": {"CNY": 7.2}}, nil)
	got, ok := c.Convert(100, "USD", "CNY")
	if !ok || got != 720 {
		t.Fatalf("got %v ok=%v, want 720 true", got, ok)
	}
}

func TestConvertRounds(t *testing.T) {
	c := NewConverter(RateTable{"EUR": {"USD": 1.0857}}, nil)
	got, ok := c.Convert(10, "EUR", "USD")
	if !ok || got != 10.86 {
		t.Fatalf("got %v ok=%v, want 10.86 true", got, ok)
	}
}

func TestConvertMissingPairSoftFails(t *testing.T) {
	c := NewConverter(RateTable{"USD": {"CNY": 7.2}}, nil)
	got, ok := c.Convert(50, "CNY", "USD")
	if ok {
		t.Fatal("inverse rate should not be implied")
	}
	if got != 50 {
		t.Fatalf("missing rate must return amount unchanged, got %v", got)
	}
	got, ok = c.Convert(50, "GBP", "JPY")
	if ok || got != 50 {
		t.Fatalf("unknown pair: got %v ok=%v", got, ok)
	}
}

func TestRate(t *testing.T) {
	c := NewConverter(RateTable{"USD": {"CNY": 7.2}}, nil)
	if r, ok := c.Rate("USD", "CNY"); !ok || r != 7.2 {
		t.Fatalf("got %v ok=%v", r, ok)
	}
	if r, ok := c.Rate("USD", "USD"); !ok || r != 1 {
		t.Fatalf("same-code rate: got %v ok=%v", r, ok)
	}
	if _, ok := c.Rate("CNY", "USD"); ok {
		t.Fatal("inverse rate should be absent")
	}
}

func TestValidCode(t *testing.T) {
	for _, code := range []string{"USD", "CNY", "eur", " JPY "} {
		if !ValidCode(code) {
			t.Fatalf("%q should be valid", code)
		}
	}
	for _, code := range []string{"", "US", "DOLLARS", "us1"} {
		if ValidCode(code) {
			t.Fatalf("%q should be invalid", code)
		}
	}
}
