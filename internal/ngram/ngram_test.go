package ngram

import (
	"testing"

	"github.com/veilmark/chronicle/internal/detect"
)

func TestClassifyCloseName(t *testing.T) {
	c := NewClassifier()
	c.Train(detect.Person, "Marcus")
	c.Train(detect.Person, "Martin")
	c.Train(detect.Place, "Elven Forest")

	typ, conf := c.Classify("Marcu")
	if typ != detect.Person {
		t.Errorf("Classify(Marcu) = %v, want PERSON", typ)
	}
	if conf != 1.0 {
		t.Errorf("confidence = %v, want 1.0 for a full trigram overlap", conf)
	}
}

func TestClassifyBelowThreshold(t *testing.T) {
	c := NewClassifier()
	c.Train(detect.Person, "Marcus")

	// Only "mar" of Marek's three trigrams is known.
	typ, conf := c.Classify("Marek")
	if typ != detect.Unknown || conf != 0 {
		t.Errorf("Classify(Marek) = %v %v, want UNKNOWN 0", typ, conf)
	}
}

func TestClassifySharedSuffix(t *testing.T) {
	c := NewClassifier()
	c.Train(detect.Place, "Elven Forest")
	c.Train(detect.Place, "Silver Forest")
	c.Train(detect.Person, "Marcus")

	typ, conf := c.Classify("Oak Forest")
	if typ != detect.Place {
		t.Errorf("Classify(Oak Forest) = %v, want PLACE", typ)
	}
	if conf < minConfidence {
		t.Errorf("confidence = %v, want >= %v", conf, minConfidence)
	}
}

func TestTrainIgnoresUnknownAndShortNames(t *testing.T) {
	c := NewClassifier()
	c.Train(detect.Unknown, "Mystery Keep")
	c.Train(detect.Person, "Vi")

	if c.Trained() {
		t.Error("unknown-typed and sub-trigram names should not train anything")
	}
	if typ, _ := c.Classify("Mystery Keep"); typ != detect.Unknown {
		t.Errorf("Classify() = %v, want UNKNOWN with empty tables", typ)
	}
}

func TestClassifyEmptyWord(t *testing.T) {
	c := NewClassifier()
	c.Train(detect.Person, "Marcus")
	if typ, conf := c.Classify(""); typ != detect.Unknown || conf != 0 {
		t.Errorf("Classify(\"\") = %v %v, want UNKNOWN 0", typ, conf)
	}
}
