// SPDX-License-Identifier: BSD-3-Clause

package profilestore

import (
	"errors"
	"testing"

	"github.com/fancontrold/fancontrold/pkg/curve"
)

func sampleProfile(name string) *curve.Profile {
	return &curve.Profile{
		Name:      name,
		SchemaTag: "fancontrold.profile/v1",
		Curves: []curve.Curve{
			{Name: "cpu", Kind: curve.KindGraph, Sources: []string{"/sys/class/hwmon/hwmon0/temp1_input"}, Points: []curve.Point{{TempC: 30, DutyPercent: 20}, {TempC: 70, DutyPercent: 100}}},
		},
		Controls: []curve.Control{
			{Name: "cpuFan", PWMPath: "/sys/class/hwmon/hwmon0/pwm1", Curve: "cpu", Enabled: true},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	p := sampleProfile("default")

	if err := s.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("default")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Name != "default" || len(got.Curves) != 1 || len(got.Controls) != 1 {
		t.Fatalf("unexpected round-tripped profile: %+v", got)
	}
}

func TestSaveOverwritesWithoutAppending(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Save(sampleProfile("p")); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := s.Save(sampleProfile("p")); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := s.Load("p")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Curves) != 1 {
		t.Fatalf("expected exactly one curve after repeated saves, got %d", len(got.Curves))
	}
}

func TestLoadMissingProfile(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.Load("nope"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestListAndDelete(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Save(sampleProfile("a")); err != nil {
		t.Fatalf("Save a: %v", err)
	}
	if err := s.Save(sampleProfile("b")); err != nil {
		t.Fatalf("Save b: %v", err)
	}

	names, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("unexpected names: %v", names)
	}

	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	names, err = s.List()
	if err != nil {
		t.Fatalf("List after delete: %v", err)
	}
	if len(names) != 1 || names[0] != "b" {
		t.Fatalf("unexpected names after delete: %v", names)
	}
}

func TestInvalidNameRejected(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.pathFor("../escape"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}
