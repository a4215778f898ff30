package enums

// ProductKind tags the product variant. Dispatch on it rather than on runtime types.
type ProductKind string

const (
	// ProductKindStocked ships from shelf stock the day after the order cutoff.
	ProductKindStocked ProductKind = "stocked"
	// ProductKindMadeToOrder is baked to order and consumes daily production capacity.
	ProductKindMadeToOrder ProductKind = "made_to_order"
)

var productKinds = []ProductKind{ProductKindStocked, ProductKindMadeToOrder}

func (k ProductKind) String() string { return string(k) }

func (k ProductKind) IsValid() bool { return known(k, productKinds) }

// ParseProductKind accepts "stocked" or "made_to_order" in any case.
func ParseProductKind(value string) (ProductKind, error) {
	return parse(value, "product kind", productKinds)
}
