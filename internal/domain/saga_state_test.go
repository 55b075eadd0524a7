package domain

import "testing"

func TestSagaState_MonotoneProgress(t *testing.T) {
	s := &SagaState{}

	if s.HasReservation() || s.HasPayment() || s.HasOrder() {
		t.Fatal("fresh SagaState must report no progress")
	}

	s.MarkReserved("temp-order-1")
	if !s.HasReservation() || s.ReservationID() != "temp-order-1" {
		t.Fatal("MarkReserved did not record reservation id")
	}

	s.MarkPaid("pay-1")
	if !s.HasPayment() || s.PaymentID() != "pay-1" {
		t.Fatal("MarkPaid did not record payment id")
	}

	s.MarkOrderCreated("order-1", "ORD-001")
	if !s.HasOrder() || s.OrderID() != "order-1" || s.OrderNumber() != "ORD-001" {
		t.Fatal("MarkOrderCreated did not record order id/number")
	}
}

func TestSagaState_OwesRefund(t *testing.T) {
	s := &SagaState{}
	if s.OwesRefund() {
		t.Fatal("no payment yet, must not owe refund")
	}

	s.MarkPaid("pay-1")
	if !s.OwesRefund() {
		t.Fatal("payment without order must owe refund")
	}

	s.MarkOrderCreated("order-1", "ORD-001")
	if s.OwesRefund() {
		t.Fatal("order created means payment belongs to it — must not owe refund")
	}
}

func TestSagaState_OwesRelease(t *testing.T) {
	s := &SagaState{}
	if s.OwesRelease() {
		t.Fatal("no reservation yet, must not owe release")
	}

	s.MarkReserved("temp-order-1")
	if !s.OwesRelease() {
		t.Fatal("reservation without order must owe release")
	}

	s.MarkOrderCreated("order-1", "ORD-001")
	if s.OwesRelease() {
		t.Fatal("order created means it owns the reservation — must not owe release")
	}
}
