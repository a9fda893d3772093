package report

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/polisai/phonescope/pkg/domain"
	"github.com/polisai/phonescope/pkg/provider"
)

// CategoryCount tallies the outcomes within one category.
type CategoryCount struct {
	Name     string
	Found    int
	NotFound int
	Failed   int
}

// Summary is a condensed projection of a report.
type Summary struct {
	Target    string
	Timestamp time.Time
	Region    string
	Carrier   string
	// WhatsApp is the status label of the WhatsApp profile lookup, or "" when
	// no WhatsApp provider ran.
	WhatsApp    string
	SocialFound int
	SocialTotal int
	Categories  []CategoryCount
	ReportPath  string
}

// Summarize projects r. It reads the report only.
func Summarize(r *domain.Report) Summary {
	s := Summary{Target: r.Target, Timestamp: r.Timestamp}

	for _, c := range r.Categories {
		count := CategoryCount{Name: c.Name}
		for _, pr := range c.Results {
			switch pr.Result.Status {
			case domain.StatusFound:
				count.Found++
			case domain.StatusFailed:
				count.Failed++
			default:
				count.NotFound++
			}
		}
		s.Categories = append(s.Categories, count)
		if c.Name == provider.CategorySocialMedia {
			s.SocialFound = count.Found
			s.SocialTotal = len(c.Results)
		}
	}

	s.Region = firstDetail(r, "region",
		[2]string{provider.CategoryLocation, "geocoder"},
		[2]string{provider.CategoryBasicInfo, "phonenumbers"},
	)
	s.Carrier = firstDetail(r, "carrier",
		[2]string{provider.CategoryCarrierInfo, "carrier"},
		[2]string{provider.CategoryCarrierInfo, "numverify"},
	)

	for _, slot := range [][2]string{
		{provider.CategoryWhatsAppIntel, "wa_profile"},
		{provider.CategorySocialMedia, "whatsapp"},
	} {
		if res, ok := r.Result(slot[0], slot[1]); ok {
			s.WhatsApp = res.Label()
			break
		}
	}
	return s
}

func firstDetail(r *domain.Report, key string, slots ...[2]string) string {
	for _, slot := range slots {
		res, ok := r.Result(slot[0], slot[1])
		if !ok || !res.Exists() {
			continue
		}
		if v := res.Details[key]; v != "" {
			return v
		}
	}
	return ""
}

var (
	headline = color.New(color.FgHiCyan, color.Bold).SprintFunc()
	label    = color.New(color.FgCyan).SprintFunc()
	good     = color.New(color.FgGreen).SprintFunc()
	bad      = color.New(color.FgRed).SprintFunc()
	muted    = color.New(color.FgYellow).SprintFunc()
)

// Print renders the summary for a terminal.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "\n%s\n", headline("[+] Intelligence Summary"))
	fmt.Fprintf(w, "%s %s\n", label("Target:"), s.Target)
	fmt.Fprintf(w, "%s %s\n", label("Region:"), orUnknown(s.Region))
	fmt.Fprintf(w, "%s %s\n", label("Carrier:"), orUnknown(s.Carrier))
	if s.SocialTotal > 0 {
		fmt.Fprintf(w, "%s %d/%d\n", label("Social Media Presence:"), s.SocialFound, s.SocialTotal)
	}
	if s.WhatsApp != "" {
		fmt.Fprintf(w, "%s %s\n", label("WhatsApp Status:"), statusColor(s.WhatsApp))
	}

	fmt.Fprintln(w)
	for _, c := range s.Categories {
		fmt.Fprintf(w, "  %-16s %s %s %s\n",
			c.Name,
			good(fmt.Sprintf("found=%d", c.Found)),
			muted(fmt.Sprintf("not_found=%d", c.NotFound)),
			bad(fmt.Sprintf("failed=%d", c.Failed)),
		)
	}

	if s.ReportPath != "" {
		fmt.Fprintf(w, "\n%s %s\n", label("[+] Report saved to:"), s.ReportPath)
	}
}

func orUnknown(v string) string {
	if v == "" {
		return "Unknown"
	}
	return v
}

func statusColor(status string) string {
	switch status {
	case domain.LabelFound:
		return good(status)
	case domain.LabelFailed:
		return bad(status)
	default:
		return muted(status)
	}
}
