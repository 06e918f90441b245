// Package whatsapp contains the Cloud API payload types and a client for the
// Graph API message endpoints.
package whatsapp

// Payload is the top-level webhook notification body.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Value Value  `json:"value"`
	Field string `json:"field"`
}

// Value carries the actual notification content. A single value holds either
// messages or statuses, never both.
type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
	Errors           []Error   `json:"errors,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender profile attached alongside inbound messages.
type Contact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

type Profile struct {
	Name string `json:"name"`
}

// Message is one inbound message. Type selects which of the optional payload
// fields is populated.
type Message struct {
	From      string   `json:"from"`
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Type      string   `json:"type"`
	Context   *Context `json:"context,omitempty"`

	Text        *Text         `json:"text,omitempty"`
	Image       *Media        `json:"image,omitempty"`
	Video       *Media        `json:"video,omitempty"`
	Audio       *Media        `json:"audio,omitempty"`
	Document    *Media        `json:"document,omitempty"`
	Sticker     *Media        `json:"sticker,omitempty"`
	Location    *Location     `json:"location,omitempty"`
	Contacts    []ContactCard `json:"contacts,omitempty"`
	Reaction    *Reaction     `json:"reaction,omitempty"`
	Interactive *Interactive  `json:"interactive,omitempty"`
	Button      *Button       `json:"button,omitempty"`
	Order       *Order        `json:"order,omitempty"`
	Referral    *Referral     `json:"referral,omitempty"`
	System      *System       `json:"system,omitempty"`
	Errors      []Error       `json:"errors,omitempty"`
}

// Context links a message to the one it replies to or forwards.
type Context struct {
	From      string `json:"from,omitempty"`
	ID        string `json:"id,omitempty"`
	Forwarded bool   `json:"forwarded,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

// Media covers image, video, audio, document and sticker payloads. Not every
// field is set for every type.
type Media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
	Voice    bool   `json:"voice,omitempty"`
	Animated bool   `json:"animated,omitempty"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// ContactCard is a shared contact card (vCard equivalent).
type ContactCard struct {
	Name   CardName    `json:"name"`
	Phones []CardPhone `json:"phones,omitempty"`
	Emails []CardEmail `json:"emails,omitempty"`
	Org    *CardOrg    `json:"org,omitempty"`
}

type CardName struct {
	FormattedName string `json:"formatted_name"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
}

type CardPhone struct {
	Phone string `json:"phone"`
	Type  string `json:"type,omitempty"`
	WaID  string `json:"wa_id,omitempty"`
}

type CardEmail struct {
	Email string `json:"email"`
	Type  string `json:"type,omitempty"`
}

type CardOrg struct {
	Company string `json:"company,omitempty"`
	Title   string `json:"title,omitempty"`
}

// Reaction references the reacted-to message by its platform id. An empty
// Emoji means the reaction was removed.
type Reaction struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// Interactive carries button and list replies.
type Interactive struct {
	Type        string       `json:"type"`
	ButtonReply *ButtonReply `json:"button_reply,omitempty"`
	ListReply   *ListReply   `json:"list_reply,omitempty"`
}

type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ListReply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Button is a template quick-reply button press.
type Button struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

type Order struct {
	CatalogID    string        `json:"catalog_id"`
	Text         string        `json:"text,omitempty"`
	ProductItems []ProductItem `json:"product_items"`
}

type ProductItem struct {
	ProductRetailerID string `json:"product_retailer_id"`
	Quantity          int    `json:"quantity"`
	ItemPrice         string `json:"item_price"`
	Currency          string `json:"currency"`
}

// Referral is attached when the sender arrived via a click-to-WhatsApp ad.
type Referral struct {
	SourceURL  string `json:"source_url,omitempty"`
	SourceID   string `json:"source_id,omitempty"`
	SourceType string `json:"source_type,omitempty"`
	Headline   string `json:"headline,omitempty"`
	Body       string `json:"body,omitempty"`
	MediaType  string `json:"media_type,omitempty"`
}

// System reports platform-side events such as a user changing numbers.
type System struct {
	Body     string `json:"body"`
	Type     string `json:"type"`
	Identity string `json:"identity,omitempty"`
	WaID     string `json:"wa_id,omitempty"`
}

// Status is a delivery receipt for an outgoing message.
type Status struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	Timestamp   string   `json:"timestamp"`
	RecipientID string   `json:"recipient_id"`
	Errors      []Error  `json:"errors,omitempty"`
	Pricing     *Pricing `json:"pricing,omitempty"`
}

type Pricing struct {
	Billable     bool   `json:"billable"`
	PricingModel string `json:"pricing_model"`
	Category     string `json:"category"`
}

type Error struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
	Details string `json:"error_data,omitempty"`
}
