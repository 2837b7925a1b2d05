// Package model implements the generic entity data model exchanged with the
// broker.
//
// # Entity Shape
//
// An entity is identified by the pair (id, type) and carries named
// attributes. On the wire every attribute is an object:
//
//	{
//	  "id": "urn:Room:1",
//	  "type": "Room",
//	  "temperature": {
//	    "value": 21.5,
//	    "type": "Number",
//	    "metadata": {
//	      "accuracy": {"value": 0.1, "type": "Number"}
//	    }
//	  }
//	}
//
// # Types
//
//   - AttributeData: one attribute (value, optional type name, metadata)
//   - MetadataItem: one metadata entry, always typed
//   - Metadata: ordered, case-insensitive collection of metadata items
//   - DynamicEntity: schema-less entity used when no Go type is known
//   - GeoPoint, GeoLine, GeoPolygon, GeoBox: simple location values
//
// Values are held in value.Container so attribute payloads received from the
// broker are decoded lazily, once, into whatever Go type the caller asks for.
package model
