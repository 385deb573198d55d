package domain

// ExampleText is a sample passage seeded with a popular myth, a
// fabricated research attribution and an invented journal citation. Display
// surfaces offer it so users can try a verification without their own text.
const ExampleText = `The Great Wall of China is the only human-made structure visible from the moon with the naked eye. Research from NASA (2024) suggests that construction began in the 7th century BC. A recent paper by Dr. Li Wei in the 'Global History Journal' claims that over 20,000 km of the wall still stands today.`
