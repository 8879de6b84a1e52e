package session

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/greenscreen-pictures/kiosk/internal/admin"
	"github.com/greenscreen-pictures/kiosk/internal/catalog"
	"github.com/greenscreen-pictures/kiosk/internal/enum"
	"github.com/greenscreen-pictures/kiosk/internal/outputs"
	"github.com/greenscreen-pictures/kiosk/internal/pricing"
)

// Draft is the order being built during one kiosk session.
type Draft struct {
	CurrentStep         string                 `json:"currentStep"`
	VisitedSteps        []int                  `json:"visitedSteps"`
	BasePrice           string                 `json:"basePrice"`
	Theme               string                 `json:"theme"`
	DeliveryMethod      []string               `json:"deliveryMethod"`
	NumberOfPhotos      int                    `json:"numberOfPhotos"`
	NumberOfEmailPhotos int                    `json:"numberOfEmailPhotos"`
	PaymentType         string                 `json:"paymentType"`
	SelectedBackgrounds []catalog.BackgroundID `json:"selectedBackgrounds"`
	BackgroundOutputs   outputs.Outputs        `json:"backgroundOutputs"`
	UploadedBackgrounds []catalog.BackgroundID `json:"uploadedBackgrounds"`
	UploadCounter       int                    `json:"uploadCounter"`
	UserName            string                 `json:"userName"`
	Emails              []string               `json:"emails"`
	NumberOfPeople      string                 `json:"numberOfPeople"`
	CustomerNumber      string                 `json:"customerNumber"`
	OrderNumber         string                 `json:"orderNumber"`
	CapturedPhotos      []string               `json:"capturedPhotos"`
}

func newDraft(s admin.Settings) Draft {
	return Draft{
		CurrentStep:         enum.StepHome,
		VisitedSteps:        []int{},
		BasePrice:           s.BasePrice,
		Theme:               s.Theme,
		DeliveryMethod:      []string{defaultDelivery(s)},
		NumberOfPhotos:      1,
		NumberOfEmailPhotos: 1,
		PaymentType:         defaultPayment(s),
		SelectedBackgrounds: []catalog.BackgroundID{},
		BackgroundOutputs:   outputs.Outputs{},
		UploadedBackgrounds: []catalog.BackgroundID{},
		Emails:              []string{""},
		NumberOfPeople:      "1",
		CapturedPhotos:      []string{},
	}
}

func defaultDelivery(s admin.Settings) string {
	if slices.Contains(s.AvailableDeliveryMethods, enum.DeliveryEmail) || len(s.AvailableDeliveryMethods) == 0 {
		return enum.DeliveryEmail
	}
	return s.AvailableDeliveryMethods[0]
}

func defaultPayment(s admin.Settings) string {
	if slices.Contains(s.AvailablePaymentMethods, enum.PaymentCash) || len(s.AvailablePaymentMethods) == 0 {
		return enum.PaymentCash
	}
	return s.AvailablePaymentMethods[0]
}

func (d Draft) clone() Draft {
	d.VisitedSteps = slices.Clone(d.VisitedSteps)
	d.DeliveryMethod = slices.Clone(d.DeliveryMethod)
	d.SelectedBackgrounds = slices.Clone(d.SelectedBackgrounds)
	d.BackgroundOutputs = d.BackgroundOutputs.Clone()
	d.UploadedBackgrounds = slices.Clone(d.UploadedBackgrounds)
	d.Emails = slices.Clone(d.Emails)
	d.CapturedPhotos = slices.Clone(d.CapturedPhotos)
	return d
}

// PriceInput is the pricing input for d under settings s.
func (d Draft) PriceInput(s admin.Settings) pricing.Input {
	return pricing.Input{
		BasePrice:       d.BasePrice,
		NumberOfPhotos:  d.NumberOfPhotos,
		DeliveryMethods: d.DeliveryMethod,
		Backgrounds:     d.SelectedBackgrounds,
		IsFreeDay:       s.IsFreeDay,
	}
}

func (d *Draft) visit(step string) {
	if r := Rank(step); r > 0 && !slices.Contains(d.VisitedSteps, r) {
		d.VisitedSteps = append(d.VisitedSteps, r)
		slices.Sort(d.VisitedSteps)
	}
}

func (d *Draft) reconcileOutputs() {
	d.BackgroundOutputs = outputs.Reconcile(d.SelectedBackgrounds, d.DeliveryMethod, d.BackgroundOutputs)
}

// fitPrintsToQuota clears per-background print counts that no longer fit the
// print count; the outputs dialog must then be confirmed again.
func (d *Draft) fitPrintsToQuota() {
	total := 0
	for _, o := range d.BackgroundOutputs {
		total += o.Print
	}
	if total <= d.NumberOfPhotos {
		return
	}
	for k, o := range d.BackgroundOutputs {
		o.Print = 0
		d.BackgroundOutputs[k] = o
	}
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail reports whether s looks like an email address.
func ValidateEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// ValidateUserInfo returns field-level messages for the contact step, keyed
// "userName" and "emails.<index>". The name and first email are required;
// other emails may be blank.
func ValidateUserInfo(name string, emails []string) map[string]string {
	errs := map[string]string{}
	if strings.TrimSpace(name) == "" {
		errs["userName"] = "Name is required"
	}
	first := ""
	if len(emails) > 0 {
		first = strings.TrimSpace(emails[0])
	}
	if first == "" {
		errs["emails.0"] = "Email 1 is required"
	}
	for i, e := range emails {
		e = strings.TrimSpace(e)
		if e != "" && !ValidateEmail(e) {
			errs["emails."+strconv.Itoa(i)] = "Please enter a valid email address"
		}
	}
	return errs
}

// userInfoComplete is the guard for leaving the contact step.
func userInfoComplete(d Draft) bool {
	errs := ValidateUserInfo(d.UserName, d.Emails)
	_, nameErr := errs["userName"]
	_, emailErr := errs["emails.0"]
	return !nameErr && !emailErr
}
