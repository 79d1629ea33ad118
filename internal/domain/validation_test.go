package domain

import "testing"

func TestWalletTransitionAllowed(t *testing.T) {
	cases := []struct {
		from, to WalletStatus
		want     bool
	}{
		{WalletStatusPending, WalletStatusValidated, true},
		{WalletStatusPending, WalletStatusRejected, true},
		{WalletStatusValidated, WalletStatusRejected, false},
		{WalletStatusRejected, WalletStatusValidated, false},
		{WalletStatusValidated, WalletStatusPending, false},
		{WalletStatusRejected, WalletStatusPending, false},
	}
	for _, tc := range cases {
		if got := WalletTransitionAllowed(tc.from, tc.to); got != tc.want {
			t.Errorf("WalletTransitionAllowed(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestKycTransitionAllowed(t *testing.T) {
	cases := []struct {
		from, to KycStatus
		want     bool
	}{
		{KycStatusPending, KycStatusApproved, true},
		{KycStatusPending, KycStatusRejected, true},
		{KycStatusApproved, KycStatusRejected, false},
		{KycStatusRejected, KycStatusApproved, false},
		{KycStatusApproved, KycStatusPending, false},
	}
	for _, tc := range cases {
		if got := KycTransitionAllowed(tc.from, tc.to); got != tc.want {
			t.Errorf("KycTransitionAllowed(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	if WalletStatusPending.Terminal() {
		t.Error("pending wallet status must not be terminal")
	}
	if !WalletStatusValidated.Terminal() || !WalletStatusRejected.Terminal() {
		t.Error("validated and rejected wallet statuses are terminal")
	}

	if WithdrawalStatusPending.Terminal() || WithdrawalStatusProcessing.Terminal() {
		t.Error("pending and processing withdrawal statuses must not be terminal")
	}
	if !WithdrawalStatusCompleted.Terminal() || !WithdrawalStatusRejected.Terminal() || !WithdrawalStatusFailed.Terminal() {
		t.Error("completed, rejected, and failed withdrawal statuses are terminal")
	}
}

func TestValidSubjectType(t *testing.T) {
	for _, subject := range []SubjectType{SubjectWallet, SubjectKyc, SubjectBalance, SubjectWithdrawal} {
		if !ValidSubjectType(subject) {
			t.Errorf("expected %s to be a valid subject type", subject)
		}
	}
	if ValidSubjectType("transaction") {
		t.Error("unknown subject type must not validate")
	}
}
