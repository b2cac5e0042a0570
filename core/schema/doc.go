/*
Package schema reads record definitions from schema documents.

A schema document declares one or more record types. Each record lists
its fields in order; every field names a rule kind in its type attribute
and passes any other attribute through as a rule parameter.

# XML Documents

Files ending in .struct or .xml:

	<structures>
	  <record name="Host">
	    <field name="address" type="SizedRegexString" max_length="15"
	           pattern="\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}"/>
	    <field name="port" type="PositiveInteger"/>
	  </record>
	</structures>

The element name struct is accepted in place of record. Other elements
under the root are ignored.

# YAML Documents

Files ending in .yaml or .yml:

	records:
	  - name: Host
	    fields:
	      - { name: address, type: SizedRegexString, max_length: 15, pattern: '\d{1,3}(\.\d{1,3}){3}' }
	      - { name: port, type: PositiveInteger }

# Translation

Parse turns bytes into a Document. Translate turns a Document into
Definitions, checking names and rule kinds. Neither performs registration;
building the record types is left to the caller.
*/
package schema
