package models

// FieldMapping maps one CRM property onto one email platform field.
type FieldMapping struct {
	Source      string `json:"source" toml:"source"`
	Destination string `json:"destination" toml:"destination"`
}

// FieldMappings is the ordered mapping table.
type FieldMappings []FieldMapping

// mappedFields are synced under the same name on both sides.
// Destination field keys must exist as custom fields in MailerLite.
var mappedFields = []string{
	"createdAt",
	"updatedAt",
	"archived",
	"abandoned_cart_counter",
	"abandoned_cart_date",
	"abandoned_cart_products",
	"abandoned_cart_products_categories",
	"abandoned_cart_products_skus",
	"abandoned_cart_subtotal",
	"abandoned_cart_url",
	"address",
	"city",
	"company",
	"country",
	"createdate",
	"current_abandoned_cart",
	"firstname",
	"hs_createdate",
	"hs_email_domain",
	"hs_language",
	"hs_object_id",
	"hs_persona",
	"last_product_bought",
	"last_products_bought",
	"last_products_bought_product_1_image_url",
	"last_products_bought_product_1_name",
	"last_products_bought_product_1_price",
	"last_products_bought_product_1_url",
	"last_products_bought_product_2_image_url",
	"last_products_bought_product_2_name",
	"last_products_bought_product_2_price",
	"last_products_bought_product_2_url",
	"last_products_bought_product_3_image_url",
	"last_products_bought_product_3_name",
	"last_products_bought_product_3_price",
	"last_products_bought_product_3_url",
	"last_total_number_of_products_bought",
	"lastmodifieddate",
	"lastname",
	"lifecyclestage",
	"opportunity",
	"mobilephone",
	"numemployees",
	"phone",
	"products_bought",
	"salutation",
	"state",
	"total_number_of_products_bought",
	"website",
	"zip",
	"last_order_order_number",
}

// DefaultFieldMappings returns a fresh copy of the built-in mapping table.
func DefaultFieldMappings() FieldMappings {
	m := make(FieldMappings, len(mappedFields))
	for i, name := range mappedFields {
		m[i] = FieldMapping{Source: name, Destination: name}
	}
	return m
}

// SourceProperties lists the properties to request from the CRM: the join key followed by every
// mapped source property, without duplicates.
func (m FieldMappings) SourceProperties() []string {
	props := make([]string, 0, len(m)+1)
	seen := map[string]bool{EmailProperty: true}
	props = append(props, EmailProperty)
	for _, f := range m {
		if seen[f.Source] {
			continue
		}
		seen[f.Source] = true
		props = append(props, f.Source)
	}
	return props
}

// DestinationFields lists the distinct destination field keys in table order.
func (m FieldMappings) DestinationFields() []string {
	fields := make([]string, 0, len(m))
	seen := map[string]bool{}
	for _, f := range m {
		if !seen[f.Destination] {
			seen[f.Destination] = true
			fields = append(fields, f.Destination)
		}
	}
	return fields
}

// Apply builds the destination payload for r. Every destination field in the table is present;
// properties missing from the record map to nil.
func (m FieldMappings) Apply(r SourceRecord) Payload {
	payload := make(Payload, len(m))
	for _, f := range m {
		if v, ok := r.Property(f.Source); ok {
			payload[f.Destination] = StringPtr(v)
		} else {
			payload[f.Destination] = nil
		}
	}
	return payload
}
