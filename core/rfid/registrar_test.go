package rfid

import "testing"

func TestRegistrarSingleRead(t *testing.T) {
	r := NewRegistrar()

	session, ch, err := r.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if session == "" {
		t.Fatal("empty session id")
	}

	if _, _, err := r.Begin(); err != ErrReadInProgress {
		t.Fatalf("second Begin = %v, want ErrReadInProgress", err)
	}

	if !r.Resolve("AB12") {
		t.Fatal("Resolve = false, want true while a read is pending")
	}
	if got := <-ch; got != "AB12" {
		t.Errorf("delivered %q, want AB12", got)
	}

	if r.Resolve("CD34") {
		t.Error("Resolve = true after the read was satisfied")
	}
}

func TestRegistrarCancel(t *testing.T) {
	r := NewRegistrar()

	session, _, err := r.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	r.Cancel("not-the-session")
	if r.Resolve("AB12") != true {
		t.Fatal("cancel with wrong session id closed the read")
	}

	session, _, err = r.Begin()
	if err != nil {
		t.Fatalf("Begin after resolve: %v", err)
	}
	r.Cancel(session)
	if r.Resolve("AB12") {
		t.Error("Resolve = true after Cancel")
	}

	if _, _, err := r.Begin(); err != nil {
		t.Errorf("Begin after Cancel = %v, want nil", err)
	}
}
