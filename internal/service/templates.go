package service

import (
	"fmt"
	"html"
	"strings"

	"clinic/backend/internal/model"
)

func (n *Notifier) renderAppointmentEmail(kind string, b model.BookingNotice) Email {
	clinic := n.cfg.Clinic
	var subject, lead string
	switch kind {
	case model.NotifyReminder:
		subject = "Appointment reminder - " + clinic.Name
		lead = "This is a reminder of your appointment tomorrow."
	case model.NotifyCancellation:
		subject = "Appointment cancelled - " + clinic.Name
		lead = "Your appointment has been cancelled. Please contact us to book a new time."
	default:
		subject = "Appointment confirmed - " + clinic.Name
		lead = "Your appointment has been booked successfully."
	}

	details := [][2]string{
		{"Booking number", b.BookingNumber},
		{"Date", b.AppointmentDate},
		{"Time", b.AppointmentTime},
		{"Doctor", b.DoctorName},
		{"Service", b.Service},
		{"Notes", b.Notes},
	}

	var text, body strings.Builder
	fmt.Fprintf(&text, "Dear %s,\n\n%s\n\n", b.PatientName, lead)
	fmt.Fprintf(&body, "<p>Dear %s,</p><p>%s</p><table>", html.EscapeString(b.PatientName), html.EscapeString(lead))
	for _, d := range details {
		if d[1] == "" {
			continue
		}
		fmt.Fprintf(&text, "%s: %s\n", d[0], d[1])
		fmt.Fprintf(&body, "<tr><th align=\"left\">%s</th><td>%s</td></tr>", d[0], html.EscapeString(d[1]))
	}
	fmt.Fprintf(&text, "\n%s\n%s\n%s\n", clinic.Name, clinic.Address, clinic.Phone)
	fmt.Fprintf(&body, "</table><p>%s<br>%s<br>%s</p>",
		html.EscapeString(clinic.Name), html.EscapeString(clinic.Address), html.EscapeString(clinic.Phone))

	return Email{To: b.Email, ToName: b.PatientName, Subject: subject, Text: text.String(), HTML: body.String()}
}
