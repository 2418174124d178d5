// SPDX-License-Identifier: MIT

package bot

import (
	"fmt"
	"strings"

	"github.com/raafi-4z1/slack-service-bot/internal/jenkins"
)

// User-facing texts. The wording is part of the operator contract; keep it
// in sync with the runbooks before changing anything here.
const (
	msgNoMentionPermission = "Maaf <@%s>, Anda tidak memiliki izin untuk memulai aksi."
	msgBusy                = "⚠️ Saat ini sudah ada sesi aktif di <#%s> oleh <@%s>. Selesaikan sesi tersebut atau tekan *Exit* dulu."
	msgNoActiveSession     = "⚠️ Tidak ada sesi aktif. Silakan mention bot lagi untuk memulai sesi baru."
	msgSessionMismatch     = "⚠️ Sesi ini tidak lagi berlaku untuk interaksi ini. Silakan mulai sesi baru dengan mention bot."
	msgNoActPermission     = "Maaf, Anda tidak memiliki izin untuk menjalankan aksi ini."
	msgNoApprovePermission = "⛔ Anda tidak memiliki izin untuk menyetujui atau menolak aksi ini."
	msgServiceNotFound     = "Service tidak ditemukan."
	msgNoActiveConfirm     = "Tidak ada konfirmasi aktif."
	msgExit                = "❌ Aksi dibatalkan."
	msgQueueWaiting        = "⏳ Job sedang berada dalam *antrian Jenkins*. Menunggu executor..."
	msgQueueCancelled      = "❌ Job *dibatalkan* karena terlalu lama menunggu di antrian Jenkins."
	msgPickService         = "*Pilih Service:*"
)

func msgChecking(label string) string {
	return fmt.Sprintf("⏳ Memeriksa status *%s* dari Jenkins...", label)
}

func msgBuildStarted(buildNumber int) string {
	return fmt.Sprintf("🚀 Job mulai dijalankan di Jenkins (Build #%d)", buildNumber)
}

func msgConfirmed(approver, action string) string {
	return fmt.Sprintf("⚙️ <@%s> mengkonfirmasi. Menjalankan '/%s'...", approver, action)
}

func msgCancelledBy(action, user string) string {
	return fmt.Sprintf("❌ Aksi '/%s' dibatalkan oleh <@%s>.", action, user)
}

func msgConfirmExpired(action string) string {
	return fmt.Sprintf("⚠️ Konfirmasi untuk '/%s' kadaluwarsa.", action)
}

func msgSessionExpired(ttlSeconds int) string {
	return fmt.Sprintf("⚠️ Sesi otomatis kedaluwarsa setelah %d detik.", ttlSeconds)
}

func msgFailed(action string, err error) string {
	return fmt.Sprintf("❌ Aksi '/%s' gagal: %v", action, err)
}

// msgProgress renders the textual progress bar. The bar is a capped
// simulation; Jenkins does not report fractional progress.
func msgProgress(action string, percent int) string {
	filled := percent / 10
	if filled > 10 {
		filled = 10
	}
	bar := strings.Repeat("▓", filled) + strings.Repeat("░", 10-filled)
	return fmt.Sprintf("⚙️ Menjalankan '/%s'...\nProgress: [%s] %d%%", action, bar, percent)
}

// msgSuccess renders the terminal summary. The action is reported
// successful even for an unknown final status; the status line carries the
// uncertainty.
func msgSuccess(action, label string, status jenkins.Status, initiator, approver string) string {
	var actionLabel string
	switch status {
	case jenkins.StatusStopped:
		actionLabel = "berhasil *STOP*"
	case jenkins.StatusRunning, jenkins.StatusStarted:
		actionLabel = "berhasil *START*"
	default:
		actionLabel = "berhasil dijalankan"
	}
	return fmt.Sprintf("✅ Aksi '/%s' untuk *%s* %s.\n\n• Diinisiasi oleh: <@%s>\n• Dikonfirmasi oleh: <@%s>\n• Status akhir: *%s*",
		action, label, actionLabel, initiator, approver, status)
}
