package structs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

//Millis Epoch milliseconds. Accepts JSON numbers, numeric strings and RFC 3339 strings.
type Millis int64

//UnmarshalJSON -_-
func (m *Millis) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*m = 0
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*m = 0
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*m = Millis(f)
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		*m = Millis(t.UnixNano() / int64(time.Millisecond))
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*m = Millis(f)
	return nil
}

//Time UTC time of the timestamp.
func (m Millis) Time() time.Time {
	return time.Unix(0, int64(m)*int64(time.Millisecond)).UTC()
}

//IsZero Whether timestamp is unset.
func (m Millis) IsZero() bool {
	return m == 0
}

//Amount Monetary amount. Accepts JSON numbers and numeric strings.
type Amount float64

//UnmarshalJSON -_-
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*a = 0
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*a = 0
			return nil
		}
		*a = Amount(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

//Text String field which tolerates numbers (e.g. foundingYear, age).
type Text string

//UnmarshalJSON -_-
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(b)
	return nil
}

//Account DB entity for citizen (users/{uid}) or organization (organizations/{uid}).
type Account struct {
	Email        string        `json:"email,omitempty"`
	AdminEmail   string        `json:"adminEmail,omitempty"`
	Username     string        `json:"username,omitempty"`
	FirstName    string        `json:"firstName,omitempty"`
	LastName     string        `json:"lastName,omitempty"`
	OrgName      string        `json:"orgName,omitempty"`
	AdminName    string        `json:"adminName,omitempty"`
	Phone        Text          `json:"phone,omitempty"`
	ContactNum   Text          `json:"contactNum,omitempty"`
	Bio          string        `json:"bio,omitempty"`
	Birthdate    string        `json:"birthdate,omitempty"`
	Address      string        `json:"address,omitempty"`
	FoundingYear Text          `json:"foundingYear,omitempty"`
	ProfileImage string        `json:"profileImage,omitempty"`
	UserType     string        `json:"userType,omitempty"`
	LastLogin    Millis        `json:"lastLogin,omitempty"`
	LastLoginOld Millis        `json:"last_login,omitempty"`
	CreatedAt    Millis        `json:"createdAt,omitempty"`
	RegisteredAt Millis        `json:"registeredAt,omitempty"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

//AdoptionListing DB entity for adoptions/{id}.
type AdoptionListing struct {
	Name             string `json:"name"`
	Species          string `json:"species"`
	Breed            string `json:"breed"`
	Age              Text   `json:"age"`
	Size             string `json:"size"`
	Gender           string `json:"gender"`
	Description      string `json:"description"`
	FullDescription  string `json:"fullDescription"`
	Address          string `json:"address"`
	ContactLocation  string `json:"contactLocation"`
	ContactPhone     Text   `json:"contactPhone"`
	ContactEmail     string `json:"contactEmail"`
	ImageURL         string `json:"imageUrl"`
	Organization     string `json:"organization"`
	OrganizationName string `json:"organizationName"`
	Status           string `json:"status,omitempty"`
	CreatedAt        Millis `json:"createdAt"`
	UpdatedAt        Millis `json:"updatedAt,omitempty"`
}

//AdoptionApplication DB entity for adoptionApplications/{id}.
type AdoptionApplication struct {
	PetID             string `json:"petId"`
	UserID            string `json:"userId"`
	FullName          string `json:"fullName"`
	Email             string `json:"email"`
	Phone             Text   `json:"phone"`
	DateOfBirth       string `json:"dateOfBirth,omitempty"`
	Occupation        string `json:"occupation,omitempty"`
	HousingType       string `json:"housingType,omitempty"`
	OwnOrRent         string `json:"ownOrRent,omitempty"`
	PermissionToKeep  string `json:"permissionToKeep,omitempty"`
	HouseholdCount    Text   `json:"householdCount,omitempty"`
	OwnPet            string `json:"ownPet,omitempty"`
	PetDetails        string `json:"petDetails,omitempty"`
	AdoptedBefore     string `json:"adoptedBefore,omitempty"`
	WorkSchedule      string `json:"workSchedule,omitempty"`
	JobStability      string `json:"jobStability,omitempty"`
	VetCare           string `json:"vetCare,omitempty"`
	EmotionalPrepared string `json:"emotionalPrepared,omitempty"`
	MentalHealth      string `json:"mentalHealth,omitempty"`
	GovIDURL          string `json:"govIdUrl,omitempty"`
	AppliedTimestamp  Millis `json:"appliedTimestamp"`
	Status            string `json:"status,omitempty"`
	ReviewedAt        Millis `json:"reviewedAt,omitempty"`
	ReviewedBy        string `json:"reviewedBy,omitempty"`
}

//DonationRequest DB entity for donation_requests/{id}.
type DonationRequest struct {
	Name          string                  `json:"name"`
	GcashName     string                  `json:"gcashName"`
	GcashNumber   Text                    `json:"gcashNumber"`
	Details       string                  `json:"details"`
	Purpose       string                  `json:"purpose"`
	GoalAmount    Amount                  `json:"goalAmount"`
	CurrentAmount Amount                  `json:"currentAmount"`
	Verified      bool                    `json:"verified"`
	Status        string                  `json:"status"`
	CreatedBy     string                  `json:"createdBy"`
	CreatedAt     Millis                  `json:"createdAt"`
	UpdatedAt     Millis                  `json:"updatedAt"`
	Transactions  map[string]Transaction  `json:"transactions,omitempty"`
	ImpactReports map[string]ImpactReport `json:"impactReports,omitempty"`
	Updates       map[string]Update       `json:"updates,omitempty"`
}

//Transaction DB entity for donation_requests/{id}/transactions/{key}.
type Transaction struct {
	DonorName string `json:"donorName"`
	Amount    Amount `json:"amount"`
	Reference string `json:"reference,omitempty"`
	Timestamp Millis `json:"timestamp"`
}

//ImpactReport DB entity for donation_requests/{id}/impactReports/{key}.
type ImpactReport struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        Millis `json:"date"`
}

//Update DB entity for donation_requests/{id}/updates/{key}.
type Update struct {
	Message string `json:"message"`
	Date    Millis `json:"date"`
}

//Report DB entity for reports/{id}.
type Report struct {
	ReportType        string             `json:"reportType"`
	ReportDescription string             `json:"reportDescription"`
	ReportUserEmail   string             `json:"reportUserEmail"`
	ReportUserID      string             `json:"reportUserId,omitempty"`
	Severity          string             `json:"severity,omitempty"`
	Status            string             `json:"status,omitempty"`
	Latitude          float64            `json:"latitude"`
	Longitude         float64            `json:"longitude"`
	ImageURLs         []string           `json:"imageUrls,omitempty"`
	VideoURL          string             `json:"videoUrl,omitempty"`
	Timestamp         Millis             `json:"timestamp"`
	OrganizationID    string             `json:"organizationId,omitempty"`
	StatusUpdatedAt   Millis             `json:"statusUpdatedAt,omitempty"`
	StatusUpdatedBy   string             `json:"statusUpdatedBy,omitempty"`
	Messages          map[string]Message `json:"messages,omitempty"`
}

//Message DB entity for reports/{id}/messages/{key}.
type Message struct {
	SenderID   string `json:"senderId"`
	SenderRole string `json:"senderRole"`
	Text       string `json:"text"`
	Timestamp  Millis `json:"timestamp"`
	Read       bool   `json:"read"`
}

//Subscription DB entity for subscriptions/{uid} and organizations/{uid}/subscription.
type Subscription struct {
	Plan      string `json:"plan"`
	StartDate Millis `json:"startDate"`
	Status    string `json:"status"`
}

//Notification DB entity for {notifications|orgNotifications}/{uid}/entries/{key}.
type Notification struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp Millis `json:"timestamp"`
	Read      bool   `json:"read"`
}

//StatusChanged Event published after every successful status transition.
type StatusChanged struct {
	EventID    string `json:"eventId"`
	Collection string `json:"collection"`
	RecordID   string `json:"recordId"`
	From       string `json:"from"`
	To         string `json:"to"`
	ActorUID   string `json:"actorUid"`
	ActorRole  string `json:"actorRole"`
	At         int64  `json:"at"`
}

//StatusCounter Daily counter of status changes.
type StatusCounter struct {
	Count int `json:"count"`
}
